package retrieval

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ShayCichocki/waypoint/pkg/models"
)

// ArtifactWriter persists the most recent retrieval result under the
// project's .waypoint directory so it can be inspected after a run.
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter creates a writer rooted at the project directory.
func NewArtifactWriter(projectRoot string) *ArtifactWriter {
	return &ArtifactWriter{dir: filepath.Join(projectRoot, ".waypoint", "cache")}
}

// latestArtifact is the on-disk shape of the inspection file.
type latestArtifact struct {
	RequestID string                  `json:"request_id"`
	Keywords  []string                `json:"keywords"`
	WrittenAt time.Time               `json:"written_at"`
	Result    *models.RetrievalResult `json:"result"`
}

// WriteLatest records the result of the most recent retrieval pass.
// Best effort: inspection artifacts never fail a request.
func (a *ArtifactWriter) WriteLatest(requestID string, keywords []string, result *models.RetrievalResult) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(latestArtifact{
		RequestID: requestID,
		Keywords:  keywords,
		WrittenAt: time.Now(),
		Result:    result,
	}, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(a.dir, "latest-retrieval.json"), data, 0o644)
}

// LatestPath returns where the inspection artifact is written.
func (a *ArtifactWriter) LatestPath() string {
	return filepath.Join(a.dir, "latest-retrieval.json")
}
