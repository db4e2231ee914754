package steps

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// defaultOracleBudget caps the content bytes placed in an oracle step prompt.
const defaultOracleBudget = 4096

// oracleStep sends a prompt to the oracle, once per content or once alone.
// It is the step kind used for pattern discovery and other free-form
// analysis whose answer later steps consume.
//
// Params:
//   - prompt (string, required): with content_ids, a %s marks where the
//     content goes
//   - content_ids ([]string)
//   - budget (int): content bytes per prompt, default 4096
//   - timeout (duration string): per call, default the oracle timeout
type oracleStep struct {
	deps       Deps
	prompt     string
	contentIDs []string
	budget     int
	timeout    time.Duration
}

func newOracleStep(step domain.ProcessStep, deps Deps) (*oracleStep, error) {
	if deps.Oracle == nil {
		return nil, fmt.Errorf("%w: oracle step %s: %w", domain.ErrValidation, step.ID, domain.ErrOracleUnavailable)
	}
	s := &oracleStep{
		deps:       deps,
		prompt:     paramString(step, "prompt", ""),
		contentIDs: paramStrings(step, "content_ids"),
		budget:     paramInt(step, "budget", defaultOracleBudget),
		timeout:    paramDuration(step, "timeout", deps.OracleTimeout),
	}
	if strings.TrimSpace(s.prompt) == "" {
		return nil, fmt.Errorf("%w: oracle step %s has no prompt", domain.ErrValidation, step.ID)
	}
	if len(s.contentIDs) > 0 && !strings.Contains(s.prompt, "%s") {
		return nil, fmt.Errorf("%w: oracle step %s prompt needs a %%s for its contents", domain.ErrValidation, step.ID)
	}
	if len(s.contentIDs) > 0 && s.deps.Contents == nil {
		return nil, fmt.Errorf("%w: oracle step %s needs a content source", domain.ErrValidation, step.ID)
	}
	if s.timeout <= 0 {
		s.timeout = domain.DefaultOracleTimeout
	}
	return s, nil
}

func (s *oracleStep) Kind() string { return KindOracle }

func (s *oracleStep) Run(ctx context.Context, _ *driven.StepInput) (any, error) {
	out := OracleOutput{Type: OracleOutput{}.outputType()}
	if len(s.contentIDs) == 0 {
		resp, err := s.infer(ctx, s.prompt)
		if err != nil {
			return nil, err
		}
		out.Responses = append(out.Responses, OracleResponse{Response: resp})
		return out, nil
	}

	for _, id := range s.contentIDs {
		content, err := s.deps.Contents.Open(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open content %s: %w", id, err)
		}
		resp, err := s.infer(ctx, fmt.Sprintf(s.prompt, truncate(content.Data, s.budget)))
		if err != nil {
			return nil, fmt.Errorf("content %s: %w", id, err)
		}
		out.Responses = append(out.Responses, OracleResponse{ContentID: id, Response: resp})
	}
	return out, nil
}

// infer makes one bounded oracle call, holding an oracle slot when a
// coordinator is set.
func (s *oracleStep) infer(ctx context.Context, prompt string) (string, error) {
	var resp string
	call := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		var err error
		resp, err = s.deps.Oracle.Infer(ctx, prompt)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrOracle, err)
		}
		if strings.TrimSpace(resp) == "" {
			return fmt.Errorf("%w: empty response", domain.ErrOracle)
		}
		return nil
	}

	var err error
	if s.deps.Resources != nil {
		err = s.deps.Resources.Do(ctx, domain.Requirements{domain.ResourceOracle: 1}, call)
	} else {
		err = call(ctx)
	}
	return strings.TrimSpace(resp), err
}

// truncate cuts data to at most n bytes on a rune boundary.
func truncate(data []byte, n int) string {
	if n <= 0 || len(data) <= n {
		return string(data)
	}
	for n > 0 && !utf8.RuneStart(data[n]) {
		n--
	}
	return string(data[:n])
}
