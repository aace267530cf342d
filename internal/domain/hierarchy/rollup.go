package hierarchy

import "evalportal/internal/domain/evaluation"

// Rollup buckets a subtree's evaluation statuses for dashboard display.
type Rollup struct {
	Submitted  int `json:"submitted"`
	InProgress int `json:"inProgress"`
	NotStarted int `json:"notStarted"`
}

// CountByStatus walks the forest and buckets every node: the submitted
// family (submitted, reviewed, signed), the in-progress family (draft,
// reopened) and not-started (no evaluation at all).
func CountByStatus(roots []*Node) Rollup {
	var rollup Rollup
	walk(roots, func(node *Node) {
		switch {
		case evaluation.IsReadOnly(node.EvaluationStatus):
			rollup.Submitted++
		case node.EvaluationStatus == evaluation.StatusDraft,
			node.EvaluationStatus == evaluation.StatusReopened:
			rollup.InProgress++
		default:
			rollup.NotStarted++
		}
	})
	return rollup
}

// ReminderRecipients collects the addresses of everyone who has not yet
// reached a submitted-family status, for reminder mailings.
func ReminderRecipients(roots []*Node) []string {
	var emails []string
	walk(roots, func(node *Node) {
		if evaluation.IsReadOnly(node.EvaluationStatus) {
			return
		}
		if node.Email != "" {
			emails = append(emails, node.Email)
		}
	})
	return emails
}
