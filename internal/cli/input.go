package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// loadDocument reads CNL text from a file, or from the graph of that id when
// no such file exists. graphID is empty for files.
func loadDocument(arg string) (text, graphID string, err error) {
	if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", arg, err)
		}
		return string(data), "", nil
	}
	if Store == nil {
		return "", "", fmt.Errorf("graph store not initialized")
	}
	text, err = Store.LoadText(arg)
	if err != nil {
		return "", "", fmt.Errorf("loading graph %s: %w", arg, err)
	}
	return text, arg, nil
}

// parseLineList parses "0,2,4-6" into sorted, de-duplicated line indices.
func parseLineList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(lo)
		if err != nil || from < 0 {
			return nil, fmt.Errorf("invalid line index %q", part)
		}
		to := from
		if isRange {
			to, err = strconv.Atoi(hi)
			if err != nil || to < from {
				return nil, fmt.Errorf("invalid line range %q", part)
			}
		}
		for i := from; i <= to; i++ {
			seen[i] = true
		}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// completeGraphIDs completes graph ids for commands taking a graph argument.
func completeGraphIDs(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if Store == nil || len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	refs, err := Store.ListGraphs()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var ids []string
	for _, r := range refs {
		if toComplete == "" || strings.HasPrefix(r.ID, toComplete) {
			ids = append(ids, r.ID+"\t"+r.Name)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
