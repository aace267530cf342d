package hierarchy

import (
	"sort"
	"time"
)

// FlatRecord is one row of the directory's reporting-line data. ReportsTo
// equal to the record's own ID is the directory's "no manager" sentinel,
// kept to satisfy a non-null foreign key in the store.
type FlatRecord struct {
	ID               string     `json:"id"`
	ReportsTo        string     `json:"reportsTo"`
	Name             string     `json:"name"`
	JobTitle         string     `json:"jobTitle"`
	Department       string     `json:"department"`
	Email            string     `json:"email"`
	EvaluationStatus string     `json:"evaluationStatus"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	PDFURL           string     `json:"pdfUrl,omitempty"`
}

type Node struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	JobTitle         string     `json:"jobTitle"`
	Department       string     `json:"department"`
	EvaluationStatus string     `json:"evaluationStatus"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	PDFURL           string     `json:"pdfUrl,omitempty"`
	Email            string     `json:"email"`
	Children         []*Node    `json:"children"`
}

// Build converts the flat reporting-line list into a forest rooted at
// rootID ("" means top of company). Records whose manager is absent from
// the input are dropped as orphans. Self-referential records count as
// roots when rootID is empty. Children are name-sorted at every level.
func Build(records []FlatRecord, rootID string) []*Node {
	nodes := make(map[string]*Node, len(records))
	for _, rec := range records {
		nodes[rec.ID] = &Node{
			ID:               rec.ID,
			Name:             rec.Name,
			JobTitle:         rec.JobTitle,
			Department:       rec.Department,
			EvaluationStatus: rec.EvaluationStatus,
			SubmittedAt:      rec.SubmittedAt,
			PDFURL:           rec.PDFURL,
			Email:            rec.Email,
			Children:         []*Node{},
		}
	}

	var roots []*Node
	for _, rec := range records {
		node := nodes[rec.ID]
		selfManaged := rec.ReportsTo == rec.ID
		switch {
		case rec.ReportsTo == rootID, selfManaged && rootID == "":
			roots = append(roots, node)
		default:
			parent, ok := nodes[rec.ReportsTo]
			if !ok {
				// Orphan: manager not in the input, drop silently.
				continue
			}
			parent.Children = append(parent.Children, node)
		}
	}

	sortForest(roots)
	return roots
}

func sortForest(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for _, node := range nodes {
		sortForest(node.Children)
	}
}

// Count returns the number of nodes attached to the forest, orphans excluded.
func Count(roots []*Node) int {
	total := 0
	walk(roots, func(*Node) { total++ })
	return total
}

func walk(nodes []*Node, visit func(*Node)) {
	for _, node := range nodes {
		visit(node)
		walk(node.Children, visit)
	}
}
