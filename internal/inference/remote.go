package inference

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	shapeHeader  = "X-Tensor-Shape"
	paramsHeader = "X-Params-Sha256"

	// maxTensorElements bounds the allocation for a response tensor:
	// a batch of five 3×1024×1024 images, 64 MiB of float32.
	maxTensorElements = 5 * 3 * 1024 * 1024
)

// RemoteEngine runs the forward pass on a model server. The weights are
// identified to the server by the digest of the last loaded parameter file.
type RemoteEngine struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	params *Parameters
}

// NewRemoteEngine creates an engine for the model server at baseURL.
// A zero timeout means requests are bounded only by their context.
func NewRemoteEngine(baseURL string, timeout time.Duration) *RemoteEngine {
	return &RemoteEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LoadParameters reads the weight file and makes it the engine's current state.
// On error the previous state is kept.
func (e *RemoteEngine) LoadParameters(path string) error {
	p, err := ReadParameters(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.params = p
	e.mu.Unlock()
	return nil
}

func (e *RemoteEngine) Parameters() *Parameters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

func (e *RemoteEngine) Generate(ctx context.Context, req *GenerateRequest) (*Tensor, error) {
	params := e.Parameters()
	if params == nil {
		return nil, ErrParametersNotLoaded
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/octet-stream")
	httpReq.Header.Set(paramsHeader, params.SHA256)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(msg))
	}

	shape, err := parseShape(resp.Header.Get(shapeHeader))
	if err != nil {
		return nil, err
	}

	data := make([]float32, elements(shape))
	if err := binary.Read(resp.Body, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor of shape %v: %w", shape, err)
	}

	return &Tensor{Shape: shape, Data: data}, nil
}

func parseShape(header string) ([]int, error) {
	if header == "" {
		return nil, fmt.Errorf("missing %s header", shapeHeader)
	}
	parts := strings.Split(header, ",")
	shape := make([]int, len(parts))
	total := 1
	for i, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid %s header %q", shapeHeader, header)
		}
		shape[i] = d
		total *= d
		if total > maxTensorElements {
			return nil, fmt.Errorf("tensor shape %q too large", header)
		}
	}
	return shape, nil
}

func elements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
