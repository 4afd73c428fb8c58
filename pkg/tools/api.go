package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/masking"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
)

// DefaultAPITimeout bounds a single ExecutarAPI call when the tool
// definition does not override it.
const DefaultAPITimeout = 30 * time.Second

// APITool is the ExecutarAPI dispatch target every kind=API tool resolves
// to: it builds and issues one HTTP call from the
// tool definition's APISpec, substituting {placeholder} segments in the
// URL, headers, and body template with the caller-supplied params.
type APITool struct {
	httpClient *http.Client
	masker     *masking.Service
}

// NewAPITool builds the ExecutarAPI plug-in. masker may be nil, in which
// case responses are returned unmasked — production wiring always
// supplies one.
func NewAPITool(masker *masking.Service) *APITool {
	return &APITool{
		httpClient: &http.Client{Timeout: DefaultAPITimeout},
		masker:     masker,
	}
}

func (t *APITool) Name() string                             { return registry.DispatchKeyAPIExecution }
func (t *APITool) Description() string                       { return "Executes a definition-driven HTTP API call." }
func (t *APITool) MandatoryParams() []models.ParamDefinition { return nil }

func (t *APITool) Execute(ctx context.Context, in registry.Input) (*models.ToolResult, error) {
	spec := in.ToolDef.API
	if spec == nil {
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("tool %q has kind=API but no api spec", in.ToolDef.Name)}, nil
	}

	url := substitute(spec.BaseURL, in.Params)
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if spec.Body != "" {
		bodyReader = strings.NewReader(substitute(spec.Body, in.Params))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("failed to build request: %v", err)}, nil
	}

	for k, v := range spec.Headers {
		req.Header.Set(k, substitute(v, in.Params))
	}
	if spec.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	applyAuth(req, spec.Auth)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("request to %s failed: %v", url, err)}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("failed to read response body: %v", err)}, nil
	}

	output := string(raw)
	if t.masker != nil {
		output = t.masker.Mask(output)
	}

	return &models.ToolResult{Success: resp.StatusCode < 400, Output: output}, nil
}

func applyAuth(req *http.Request, auth models.AuthConfig) {
	switch auth.Type {
	case models.AuthTypeBearer:
		if auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+auth.Token)
		}
	case models.AuthTypeNone, "":
	}
}

// substitute replaces every "{key}" occurrence in tmpl with the string
// form of params[key]. Unmatched placeholders are left as-is.
func substitute(tmpl string, params map[string]any) string {
	if len(params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
