package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/debug"

	"github.com/ShayCichocki/waypoint/internal/knowledge"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// WorkerCommand is the hidden subcommand name the orchestrator invokes
// on its own binary to run a gathering pass out of process.
const WorkerCommand = "retrieve-worker"

// workerRequest is the wire format sent to the worker process on stdin.
type workerRequest struct {
	Keywords      []string `json:"keywords"`
	Roots         []string `json:"roots"`
	MapIndexPath  string   `json:"map_index_path,omitempty"`
	MaxFiles      int      `json:"max_files"`
	MaxFileBytes  int      `json:"max_file_bytes"`
	ExcerptBytes  int      `json:"excerpt_bytes"`
	MemoryCeiling int64    `json:"memory_ceiling"`
}

// workerResponse is the wire format the worker process writes to stdout.
type workerResponse struct {
	Result *models.RetrievalResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// isolateSubprocess re-executes the current binary as a worker process
// and exchanges JSON over its pipes. The context bounds the child's
// lifetime: on expiry the process is killed, never merely signalled
// and waited on.
func (w *Worker) isolateSubprocess(ctx context.Context, req workerRequest) (*models.RetrievalResult, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: locating binary: %v", ErrIsolationFailure, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding worker request: %w", err)
	}

	cmd := exec.CommandContext(ctx, self, WorkerCommand)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v (stderr: %s)", ErrIsolationFailure, err, truncateBytes(stderr.Bytes(), 200))
	}

	var resp workerResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed worker output: %v", ErrIsolationFailure, err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: worker returned no result", ErrIsolationFailure)
	}
	return resp.Result, nil
}

// RunWorker is the worker-process entry point. It reads a request from
// in, applies the memory ceiling to its own runtime, runs the
// gathering pass, and writes the response to out. Errors are reported
// in-band; the process exit code stays zero so the parent can
// distinguish a failed pass from a failed spawn.
func RunWorker(ctx context.Context, in io.Reader, out io.Writer) error {
	var req workerRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return writeResponse(out, workerResponse{Error: fmt.Sprintf("decoding request: %v", err)})
	}

	if req.MemoryCeiling > 0 {
		debug.SetMemoryLimit(req.MemoryCeiling)
	}

	var store knowledge.Store
	fs := knowledge.NewFSStore(req.Roots, 1024)
	store = fs
	if req.MapIndexPath != "" {
		if indexed, err := knowledge.LoadMapIndex(req.MapIndexPath); err == nil {
			store = knowledge.Multi{indexed, fs}
		}
	}

	result, err := gather(ctx, store, req.Keywords, limits{
		MaxFiles:     req.MaxFiles,
		MaxFileBytes: req.MaxFileBytes,
		ExcerptBytes: req.ExcerptBytes,
	})
	if err != nil {
		return writeResponse(out, workerResponse{Error: err.Error()})
	}
	return writeResponse(out, workerResponse{Result: result})
}

func writeResponse(out io.Writer, resp workerResponse) error {
	return json.NewEncoder(out).Encode(resp)
}

func truncateBytes(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
