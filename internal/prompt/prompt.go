// Package prompt declares the closed set of extraction tasks and builds
// the composite vision prompts sent to the model. The output contract is
// strict JSON with pixel-integer coordinates relative to the image
// top-left.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Task is one extraction concern a vision call can fulfill.
type Task string

const (
	TaskText            Task = "TEXT"
	TaskLayout          Task = "LAYOUT"
	TaskTables          Task = "TABLES"
	TaskEntities        Task = "ENTITIES"
	TaskSummary         Task = "SUMMARY"
	TaskVisualElements  Task = "VISUAL_ELEMENTS"
	TaskDrawingMetadata Task = "DRAWING_METADATA"
	TaskAll             Task = "ALL"
)

// AllTasks is the expansion of TaskAll, in canonical order.
var AllTasks = []Task{
	TaskText, TaskLayout, TaskTables, TaskEntities,
	TaskSummary, TaskVisualElements, TaskDrawingMetadata,
}

// taskOrder fixes fragment order so composed prompts are deterministic.
var taskOrder = map[Task]int{
	TaskText: 0, TaskLayout: 1, TaskTables: 2, TaskEntities: 3,
	TaskSummary: 4, TaskVisualElements: 5, TaskDrawingMetadata: 6,
}

var taskFragments = map[Task]string{
	TaskText: `TEXT: Extract ALL visible text verbatim, in reading order. Preserve identifiers, mark numbers, and dimension strings exactly as written, including units. Do not paraphrase or omit repeated text.`,

	TaskLayout: `LAYOUT: Identify layout blocks (title, heading, paragraph, caption, note, title_block, legend). For each block report its type, text, and bounding box as integer pixel coordinates [x0, y0, x1, y1] relative to the image top-left corner.`,

	TaskTables: `TABLES: Extract every table. For each table report headers, all rows as arrays of cell strings, an optional caption, position (integer pixel bounding box), and whether the table is a schedule or bill of materials. Preserve cell values exactly, including units and tolerances. Report explicit integer quantities, never ranges.`,

	TaskEntities: `ENTITIES: Extract named entities (materials, standards, grades, part numbers, organizations, dates). For each entity report its text, a category, and the integer pixel bounding box of its first occurrence.`,

	TaskSummary: `SUMMARY: Write a 2-4 sentence summary of what this page shows. State the document kind and the main subject. Do not invent details not visible on the page.`,

	TaskVisualElements: `VISUAL_ELEMENTS: Identify repeated graphical elements (bolts, rivets, holes, welds, fasteners, symbols). Group identical elements; for each group report the element type, an exact integer count of instances, the cluster center as integer pixel coordinates, and up to 5 representative instance positions. Count every instance individually, never estimate.`,

	TaskDrawingMetadata: `DRAWING_METADATA: From the title block, extract drawing number, title, revision, scale, date, drawn_by, checked_by, project, and sheet. Use null for fields not present. Preserve values exactly as written.`,
}

// Normalize expands ALL, removes duplicates and unknown tasks, and
// returns the canonical order.
func Normalize(tasks []Task) []Task {
	seen := make(map[Task]bool)
	for _, t := range tasks {
		if t == TaskAll {
			for _, a := range AllTasks {
				seen[a] = true
			}
			continue
		}
		if _, known := taskOrder[t]; known {
			seen[t] = true
		}
	}

	out := make([]Task, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return taskOrder[out[i]] < taskOrder[out[j]] })
	return out
}

// Build composes the requested tasks into one prompt and appends the
// strict JSON output schema. The specialized fragment, when non-empty,
// is injected before the task list.
func Build(tasks []Task, specialized string) string {
	tasks = Normalize(tasks)

	var sb strings.Builder
	sb.WriteString("You are a precise document extraction engine. Analyze the page image and perform the tasks below.\n\n")
	if specialized != "" {
		sb.WriteString(specialized)
		sb.WriteString("\n\n")
	}
	for i, t := range tasks {
		fmt.Fprintf(&sb, "%d. %s\n\n", i+1, taskFragments[t])
	}
	sb.WriteString(outputSchema(tasks))
	return sb.String()
}

// outputSchema renders the required JSON shape. Keys for unrequested
// tasks stay in the schema so the response shape is stable; the model is
// told to leave them empty.
func outputSchema(tasks []Task) string {
	var sb strings.Builder
	sb.WriteString(`OUTPUT CONTRACT:
Respond with a single JSON object and nothing else. No markdown fences, no commentary.
All coordinates are integer pixels relative to the image top-left corner.
Counts are exact integers, never ranges. Keys for tasks not requested must be empty ("" / [] / null).

{
  "text": "...",
  "layout": [{"type": "...", "text": "...", "bbox": [0, 0, 0, 0]}],
  "tables": [{"headers": [], "rows": [[]], "caption": null, "bbox": [0, 0, 0, 0], "is_schedule": false}],
  "entities": [{"text": "...", "category": "...", "bbox": [0, 0, 0, 0]}],
  "visual_elements": {
    "element_groups": [{"element_type": "...", "count": 0, "cluster_center": [0, 0], "instances": [[0, 0]]}]
  },
  "drawing_metadata": {"drawing_number": null, "title": null, "revision": null, "scale": null, "date": null, "drawn_by": null, "checked_by": null, "project": null, "sheet": null},
  "summary": ""
}
`)
	return sb.String()
}

// Specialized prompt fragments by document domain.
const (
	SpecializedEngineeringDrawing = `DOMAIN: This is an engineering drawing. Pay attention to the title block, revision table, schedule tables (element marks with quantities), weld and fastener symbols, section markers, and dimension chains. Element marks (C1, B2, M8x20) must be preserved character-for-character. Cross-check schedule quantities against counted symbols where both are visible.`

	SpecializedFinancial = `DOMAIN: This is a financial document. Preserve all monetary amounts with their currency symbols and signs, account numbers, dates, and totals exactly. Table column alignment matters; keep debit and credit columns distinct.`

	SpecializedScientific = `DOMAIN: This is a scientific document. Preserve formulas, units, measurement uncertainty, and figure/table references exactly. Extract axis labels and captions for plots.`

	SpecializedLegal = `DOMAIN: This is a legal document. Preserve clause and section numbering, defined terms (capitalized), party names, and dates exactly. Note cross-references between sections.`
)

// SpecializedFor maps a document-type tag to its domain fragment.
// Unknown tags get no specialization.
func SpecializedFor(docType string) string {
	switch strings.ToLower(docType) {
	case "drawing", "engineering", "engineering_drawing":
		return SpecializedEngineeringDrawing
	case "financial", "invoice", "statement":
		return SpecializedFinancial
	case "scientific", "paper":
		return SpecializedScientific
	case "legal", "contract":
		return SpecializedLegal
	default:
		return ""
	}
}

// RecommendedTasks maps a document-type tag to the task list worth
// paying for on that kind of document.
func RecommendedTasks(docType string) []Task {
	switch strings.ToLower(docType) {
	case "drawing", "engineering", "engineering_drawing":
		return []Task{TaskText, TaskTables, TaskVisualElements, TaskDrawingMetadata}
	case "financial", "invoice", "statement":
		return []Task{TaskText, TaskTables, TaskEntities}
	case "scientific", "paper":
		return []Task{TaskText, TaskLayout, TaskTables, TaskSummary}
	case "legal", "contract":
		return []Task{TaskText, TaskLayout, TaskEntities, TaskSummary}
	default:
		return []Task{TaskAll}
	}
}
