package worktree

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	treeID = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
	oidA   = "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"
	oidB   = "d00491fd7e5bb6fa28c517a0bb32b8b506539d4d"
	oidC   = "0cfbf08886fca9a91cb753ec8734c84fcbe52c9f"
)

func mergeTreeOutput(records ...string) []byte {
	return []byte(strings.Join(records, "\x00") + "\x00")
}

func TestParseMergeTree(t *testing.T) {
	tests := []struct {
		name      string
		out       []byte
		wantTree  string
		wantPaths []string
	}{
		{
			name:     "clean",
			out:      mergeTreeOutput(treeID),
			wantTree: treeID,
		},
		{
			name: "content conflict",
			out: mergeTreeOutput(treeID,
				"100644 "+oidA+" 1\tshared.txt",
				"100644 "+oidB+" 2\tshared.txt",
				"100644 "+oidC+" 3\tshared.txt",
			),
			wantTree:  treeID,
			wantPaths: []string{"shared.txt"},
		},
		{
			name: "add/add has no ancestor",
			out: mergeTreeOutput(treeID,
				"100644 "+oidB+" 2\tnew.txt",
				"100644 "+oidC+" 3\tnew.txt",
			),
			wantTree:  treeID,
			wantPaths: []string{"new.txt"},
		},
		{
			name: "modify/delete falls back to theirs",
			out: mergeTreeOutput(treeID,
				"100644 "+oidA+" 1\tgone.txt",
				"100644 "+oidC+" 3\tgone.txt",
			),
			wantTree:  treeID,
			wantPaths: []string{"gone.txt"},
		},
		{
			name: "rename/rename reports every path",
			out: mergeTreeOutput(treeID,
				"100644 "+oidA+" 1\told.txt",
				"100644 "+oidB+" 2\tours.txt",
				"100644 "+oidC+" 3\ttheirs.txt",
			),
			wantTree:  treeID,
			wantPaths: []string{"old.txt", "ours.txt", "theirs.txt"},
		},
		{
			// modify/delete on a, then a file/directory clash that git
			// resolves by renaming theirs to d~team
			name: "adjacent paths with rising stages stay apart",
			out: mergeTreeOutput(treeID,
				"100644 "+oidA+" 1\ta",
				"100644 "+oidB+" 2\ta",
				"100644 "+oidC+" 3\td~team",
			),
			wantTree:  treeID,
			wantPaths: []string{"a", "d~team"},
		},
		{
			name: "several conflicts keep order",
			out: mergeTreeOutput(treeID,
				"100644 "+oidA+" 1\tb.txt",
				"100644 "+oidB+" 2\tb.txt",
				"100644 "+oidC+" 3\tb.txt",
				"100644 "+oidA+" 1\ta.txt",
				"100644 "+oidB+" 2\ta.txt",
				"100644 "+oidC+" 3\ta.txt",
				"100644 "+oidA+" 1\tonly-ancestor.txt",
			),
			wantTree:  treeID,
			wantPaths: []string{"b.txt", "a.txt", "only-ancestor.txt"},
		},
		{
			name: "paths with spaces and tabs",
			out: mergeTreeOutput(treeID,
				"100644 "+oidB+" 2\tdir/with space.txt",
				"100644 "+oidC+" 3\tdir/with space.txt",
			),
			wantTree:  treeID,
			wantPaths: []string{"dir/with space.txt"},
		},
		{
			name: "stops at the section separator",
			out: []byte(treeID + "\x00" +
				"100644 " + oidB + " 2\tx.txt\x00" +
				"100644 " + oidC + " 3\tx.txt\x00" +
				"\x00" + "1\x00x.txt\x00Auto-merging\x00message\x00"),
			wantTree:  treeID,
			wantPaths: []string{"x.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMergeTree(tt.out)
			if err != nil {
				t.Fatalf("parseMergeTree() error = %v", err)
			}
			if got.Tree != tt.wantTree {
				t.Errorf("Tree = %q, want %q", got.Tree, tt.wantTree)
			}
			paths := conflictPaths(got.Conflicts)
			if len(tt.wantPaths) == 0 && len(paths) == 0 {
				return
			}
			if diff := cmp.Diff(tt.wantPaths, paths); diff != "" {
				t.Errorf("conflict paths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseMergeTree_GroupsByPath(t *testing.T) {
	out := mergeTreeOutput(treeID,
		"100644 "+oidA+" 1\ta",
		"100644 "+oidB+" 2\ta",
		"100644 "+oidC+" 3\td~team",
		"100644 "+oidB+" 2\tz",
		"100644 "+oidC+" 3\tz",
	)
	got, err := parseMergeTree(out)
	if err != nil {
		t.Fatalf("parseMergeTree() error = %v", err)
	}
	want := []ConflictEntry{
		{Ancestor: "a", Ours: "a"},
		{Theirs: "d~team"},
		{Ours: "z", Theirs: "z"},
	}
	if diff := cmp.Diff(want, got.Conflicts); diff != "" {
		t.Errorf("conflict entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMergeTree_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"empty":        nil,
		"no tab":       mergeTreeOutput(treeID, "100644 "+oidA+" 2 x.txt"),
		"bad stage":    mergeTreeOutput(treeID, "100644 "+oidA+" 7\tx.txt"),
		"short meta":   mergeTreeOutput(treeID, oidA+" 2\tx.txt"),
		"missing path": mergeTreeOutput(treeID, "100644 "+oidA+" 2\t"),
	}
	for name, out := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseMergeTree(out); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestConflictEntry_Path(t *testing.T) {
	tests := []struct {
		entry ConflictEntry
		want  string
	}{
		{ConflictEntry{Ancestor: "a", Ours: "o", Theirs: "t"}, "o"},
		{ConflictEntry{Ancestor: "a", Theirs: "t"}, "t"},
		{ConflictEntry{Ancestor: "a"}, "a"},
		{ConflictEntry{}, ""},
	}
	for _, tt := range tests {
		if got := tt.entry.Path(); got != tt.want {
			t.Errorf("%+v.Path() = %q, want %q", tt.entry, got, tt.want)
		}
	}
}

func TestConflictPaths_Dedupes(t *testing.T) {
	got := conflictPaths([]ConflictEntry{
		{Ours: "x"}, {Theirs: "x"}, {Ancestor: "y"}, {},
	})
	if diff := cmp.Diff([]string{"x", "y"}, got); diff != "" {
		t.Errorf("conflictPaths mismatch (-want +got):\n%s", diff)
	}
}
