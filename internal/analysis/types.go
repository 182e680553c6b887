package analysis

import "github.com/leapstack-labs/insightgraph/internal/graph"

// Session is returned when an upload starts an analysis. Hub groups the
// findings generated for one dataset.
type Session struct {
	Session string `json:"session"`
	Hub     string `json:"hub"`
}

// Image is a chart rendered by the backend.
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Question is a follow-up offered with a finding.
type Question struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Item is one generated finding, as returned by every listing and fetch
// endpoint.
type Item struct {
	ID           string     `json:"id"`
	Prompt       string     `json:"prompt"`
	Text         string     `json:"text"`
	Title        string     `json:"title"`
	ThreadID     string     `json:"thread_id"`
	ParentNodeID *string    `json:"parent_node_id"`
	Images       []Image    `json:"images"`
	Questions    []Question `json:"questions"`
}

// Finding converts the item into node content.
func (it Item) Finding() graph.FindingContent {
	f := graph.FindingContent{
		Title:    it.Title,
		Body:     it.Text,
		Prompt:   it.Prompt,
		ThreadID: it.ThreadID,
	}
	if it.ParentNodeID != nil {
		f.ParentServerID = *it.ParentNodeID
	}
	for _, img := range it.Images {
		f.Images = append(f.Images, img.URL)
	}
	for _, q := range it.Questions {
		f.Questions = append(f.Questions, graph.Question{ID: q.ID, Content: q.Content})
	}
	return f
}
