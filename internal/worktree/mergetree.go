package worktree

import (
	"fmt"
	"strconv"
	"strings"
)

// parseMergeTree parses the NUL-separated output of
//
//	git merge-tree --write-tree -z --no-messages
//
// which is the merged tree id followed, on conflict, by one
// "<mode> <oid> <stage>\t<path>" record per conflicted index entry. An
// empty record ends the conflicted file section.
//
// Records of one conflicted path are emitted together with increasing
// stage numbers (1 ancestor, 2 ours, 3 theirs). A new path, or a stage
// that does not increase, starts the next conflict.
func parseMergeTree(out []byte) (*TreeMerge, error) {
	records := strings.Split(string(out), "\x00")
	tree := strings.TrimSpace(records[0])
	if tree == "" {
		return nil, fmt.Errorf("missing tree id")
	}

	result := &TreeMerge{Tree: tree}
	var current *ConflictEntry
	lastStage, lastPath := 0, ""

	for _, rec := range records[1:] {
		if rec == "" {
			break
		}
		stage, path, err := parseStageRecord(rec)
		if err != nil {
			return nil, err
		}

		if current == nil || path != lastPath || stage <= lastStage {
			result.Conflicts = append(result.Conflicts, ConflictEntry{})
			current = &result.Conflicts[len(result.Conflicts)-1]
		}
		switch stage {
		case 1:
			current.Ancestor = path
		case 2:
			current.Ours = path
		case 3:
			current.Theirs = path
		}
		lastStage, lastPath = stage, path
	}

	return result, nil
}

func parseStageRecord(rec string) (int, string, error) {
	meta, path, ok := strings.Cut(rec, "\t")
	if !ok || path == "" {
		return 0, "", fmt.Errorf("malformed conflict record %q", rec)
	}
	fields := strings.Fields(meta)
	if len(fields) != 3 {
		return 0, "", fmt.Errorf("malformed conflict record %q", rec)
	}
	stage, err := strconv.Atoi(fields[2])
	if err != nil || stage < 1 || stage > 3 {
		return 0, "", fmt.Errorf("invalid stage in conflict record %q", rec)
	}
	return stage, path, nil
}

// conflictPaths reduces conflict entries to one path each, dropping
// repeats while keeping first-seen order.
func conflictPaths(entries []ConflictEntry) []string {
	seen := make(map[string]bool, len(entries))
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		p := e.Path()
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}
