package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/project-spencer/orbit/pkg/vci"
)

const (
	SectionLatest  = "LATEST NDVI"
	SectionHistory = "NDVI BY REGION"
	SectionVCI     = "VCI BY REGION"
	SectionState   = "VCI CLASSIFICATION BY REGION"
)

// Dump is the flat text result of an aggregation.
type Dump struct {
	// Latest maps each surviving image to its mean NDVI.
	Latest  map[string]float64
	History map[string][]float64
	Results []vci.Result
}

func Write(w io.Writer, d Dump) error {
	bw := bufio.NewWriter(w)

	section(bw, SectionLatest)
	for _, k := range sortedKeys(d.Latest) {
		fmt.Fprintf(bw, "%s: %s\n", k, num(d.Latest[k]))
	}

	bw.WriteString("\n")
	section(bw, SectionHistory)
	for _, k := range sortedKeys(d.History) {
		vals := make([]string, len(d.History[k]))
		for i, v := range d.History[k] {
			vals[i] = num(v)
		}
		fmt.Fprintf(bw, "%s: [%s]\n", k, strings.Join(vals, ", "))
	}

	results := make([]vci.Result, len(d.Results))
	copy(results, d.Results)
	sort.Slice(results, func(i, j int) bool { return results[i].Region < results[j].Region })

	bw.WriteString("\n")
	section(bw, SectionVCI)
	for _, r := range results {
		fmt.Fprintf(bw, "%s: %s\n", r.Region, num(r.VCI))
	}

	bw.WriteString("\n")
	section(bw, SectionState)
	for _, r := range results {
		fmt.Fprintf(bw, "%s: %s\n", r.Region, r.State)
	}

	return bw.Flush()
}

func WriteFile(path string, d Dump) error {
	f, err := os.Create(path)

	if err != nil {
		return err
	}

	if err := Write(f, d); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func section(w *bufio.Writer, name string) {
	fmt.Fprintf(w, "# %s\n", name)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
