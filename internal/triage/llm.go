package triage

import "context"

// Classification is the classifier's verdict for one message. When Ignore is
// true the message is spam or noise: it must be dropped without a record and
// without a reply, whatever the other fields say.
type Classification struct {
	Department         string
	Priority           Priority
	Ignore             bool
	IgnoreReason       string
	RelatedDepartments []string
	Usage              Usage
}

// Classifier assigns a department, priority and spam verdict to a message.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (*Classification, error)
}

// Retriever returns up to k supporting knowledge snippets for a query,
// scoped to one department. An empty result is valid and expected.
type Retriever interface {
	Search(ctx context.Context, query, department string) ([]string, error)
}

// Draft is a generated reply candidate. Confidence is on the service's
// 0..100 scale; the decision threshold is evaluated on this scale, not on
// the stored fraction.
type Draft struct {
	Reply      string
	Confidence int
	Usage      Usage
}

// Generator drafts a reply from the message and the retrieved snippets.
type Generator interface {
	Generate(ctx context.Context, subject, body string, snippets []string) (*Draft, error)
}
