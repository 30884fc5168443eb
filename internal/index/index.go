// Package index extracts requirements and tasks from artifact bodies and
// builds the traceability matrix between them.
//
// The parsing rules are a textual/structural contract, not NLP: requirement
// identifiers match FR-# / NFR-# at line starts of the spec; task identifiers
// match N or N.M in tasks section headers; a task references a requirement if
// the requirement id literally appears in that task's text block. Ambiguous
// or missing references are reported by the analyzer, never guessed here.
//
// Everything in this package is a pure, deterministic function over immutable
// artifact bodies: indices are derived views, recomputable at any time, and
// never a source of truth.
package index

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sdwkit/sdw/internal/types"
)

var (
	// requirementPattern matches FR-#/NFR-# at line starts, with an
	// optional separator before the requirement text.
	requirementPattern = regexp.MustCompile(`^((FR|NFR)-\d+)\s*[:.\-]?\s*(.*)$`)

	// taskHeaderPattern matches a markdown heading or a bare "Task N" line
	// that opens a task block, e.g. "## Task 3.1: Wire the store" or
	// "### 2. Add handlers [P]".
	taskHeaderPattern = regexp.MustCompile(`^(?:#{1,6}\s+)?[Tt]ask\s+(\d+(?:\.\d+)?)\s*[:.\-]?\s*(.*)$`)

	// bareHeaderPattern matches headings whose identifier is the leading
	// number itself, e.g. "## 3.2 Build the index".
	bareHeaderPattern = regexp.MustCompile(`^#{1,6}\s+(\d+(?:\.\d+)?)\s*[:.\-]?\s+(.*)$`)

	// dependsPattern matches a declared dependency line inside a task
	// block, e.g. "Depends on: 1, 2.3" or "depends on task 4".
	dependsPattern = regexp.MustCompile(`(?i)^\s*depends\s+on\s*:?\s*(.+)$`)

	// taskIDPattern extracts task identifiers from a dependency list.
	taskIDPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// requirementRefPattern finds requirement references anywhere in a
	// task block.
	requirementRefPattern = regexp.MustCompile(`\b(FR|NFR)-\d+\b`)

	// openQuestionPattern finds unresolved clarification markers.
	openQuestionPattern = regexp.MustCompile(`\[NEEDS CLARIFICATION:?\s*([^\]]*)\]`)

	// parallelMarker flags a task the author considers parallel-eligible.
	parallelMarker = "[P]"
)

// OpenQuestions returns the ordered list of unresolved clarification markers
// in a body. Resolving a question means drafting a new revision without the
// marker; the list is extracted once at revision creation.
func OpenQuestions(body string) []string {
	matches := openQuestionPattern.FindAllStringSubmatch(body, -1)
	questions := make([]string, 0, len(matches))
	for _, m := range matches {
		q := strings.TrimSpace(m[1])
		if q == "" {
			q = "(unspecified)"
		}
		questions = append(questions, q)
	}
	return questions
}

// ParseRequirements extracts requirements from a spec body, in document
// order. Duplicate ids are preserved so the analyzer can report them.
func ParseRequirements(body string) []types.Requirement {
	var reqs []types.Requirement
	for _, line := range strings.Split(body, "\n") {
		m := requirementPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		kind := types.RequirementFunctional
		if m[2] == "NFR" {
			kind = types.RequirementNonFunctional
		}
		reqs = append(reqs, types.Requirement{
			ID:   m[1],
			Kind: kind,
			Text: strings.TrimSpace(m[3]),
		})
	}
	return reqs
}

// ParseTasks extracts tasks from a tasks body, in document order. A task
// block runs from its header to the next header; requirement references and
// dependency declarations are collected from the whole block.
func ParseTasks(body string) []types.Task {
	lines := strings.Split(body, "\n")

	var tasks []types.Task
	var current *types.Task
	var block []string

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(block, "\n"))
		current.RequirementRefs = requirementRefs(current.Title + "\n" + current.Body)
		current.DependsOn = dependsOn(block)
		tasks = append(tasks, *current)
		current = nil
		block = nil
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		id, title, ok := matchTaskHeader(line)
		if ok {
			flush()
			current = &types.Task{
				ID:               id,
				Title:            strings.TrimSpace(strings.ReplaceAll(title, parallelMarker, "")),
				ParallelEligible: strings.Contains(line, parallelMarker),
			}
			continue
		}
		if current != nil {
			block = append(block, line)
		}
	}
	flush()

	return tasks
}

func matchTaskHeader(line string) (id, title string, ok bool) {
	if m := taskHeaderPattern.FindStringSubmatch(line); m != nil {
		return m[1], m[2], true
	}
	if m := bareHeaderPattern.FindStringSubmatch(line); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

// requirementRefs returns the unique requirement ids appearing in a block,
// in first-appearance order.
func requirementRefs(block string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, ref := range requirementRefPattern.FindAllString(block, -1) {
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// dependsOn returns the unique task ids declared on "depends on" lines,
// in declaration order.
func dependsOn(block []string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, line := range block {
		m := dependsPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, id := range taskIDPattern.FindAllString(m[1], -1) {
			if !seen[id] {
				seen[id] = true
				deps = append(deps, id)
			}
		}
	}
	return deps
}

// Index is the derived requirement/task view over one feature's approved
// spec and tasks artifacts.
type Index struct {
	// SpecRevision and TasksRevision record which artifact revisions this
	// index was computed from. An index whose revisions no longer match
	// the latest approved artifacts is stale and must be rebuilt.
	SpecRevision  int
	TasksRevision int

	Requirements []types.Requirement
	Tasks        []types.Task

	// Trace holds one entry per requirement, in requirement order, listing
	// the tasks that reference it. Requirements with no referencing task
	// have an empty TaskIDs slice: that is the coverage gap the analyzer
	// reports.
	Trace []types.TraceabilityEntry
}

// Build computes the index from an approved spec artifact and an approved
// tasks artifact. It is deterministic and idempotent: re-running over the
// same revisions yields the same index.
func Build(spec, tasks *types.Artifact) *Index {
	idx := &Index{}
	if spec != nil {
		idx.SpecRevision = spec.Revision
		idx.Requirements = ParseRequirements(spec.Body)
	}
	if tasks != nil {
		idx.TasksRevision = tasks.Revision
		idx.Tasks = ParseTasks(tasks.Body)
	}

	byRequirement := make(map[string][]string)
	for _, task := range idx.Tasks {
		for _, ref := range task.RequirementRefs {
			byRequirement[ref] = append(byRequirement[ref], task.ID)
		}
	}

	seen := make(map[string]bool)
	for _, req := range idx.Requirements {
		if seen[req.ID] {
			continue
		}
		seen[req.ID] = true
		idx.Trace = append(idx.Trace, types.TraceabilityEntry{
			RequirementID: req.ID,
			TaskIDs:       byRequirement[req.ID],
		})
	}

	return idx
}

// RequirementIDs returns the set of requirement ids in the spec.
func (idx *Index) RequirementIDs() map[string]bool {
	ids := make(map[string]bool, len(idx.Requirements))
	for _, req := range idx.Requirements {
		ids[req.ID] = true
	}
	return ids
}

// TaskIDs returns the set of task ids in document order plus a lookup set.
func (idx *Index) TaskIDs() map[string]bool {
	ids := make(map[string]bool, len(idx.Tasks))
	for _, task := range idx.Tasks {
		ids[task.ID] = true
	}
	return ids
}

// DuplicateRequirementIDs returns requirement ids declared more than once,
// sorted for determinism.
func (idx *Index) DuplicateRequirementIDs() []string {
	return duplicates(func(yield func(string)) {
		for _, req := range idx.Requirements {
			yield(req.ID)
		}
	})
}

// DuplicateTaskIDs returns task ids declared more than once, sorted.
func (idx *Index) DuplicateTaskIDs() []string {
	return duplicates(func(yield func(string)) {
		for _, task := range idx.Tasks {
			yield(task.ID)
		}
	})
}

func duplicates(each func(yield func(string))) []string {
	counts := make(map[string]int)
	each(func(id string) { counts[id]++ })

	var dups []string
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return dups
}
