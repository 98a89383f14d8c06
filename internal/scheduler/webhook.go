package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var defaultWebhookTimeout = 30 * time.Second

// fireWebhook performs the job's configured outbound HTTP request, grounded
// on internal/cron/scheduler.go's executeWebhook.
func (t *CronTrigger) fireWebhook(ctx context.Context) error {
	cfg := t.job
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return fmt.Errorf("job %s has no webhook url", cfg.ID)
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.WebhookMethod))
	if method == "" {
		method = http.MethodPost
	}

	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, cfg.WebhookURL, strings.NewReader(cfg.WebhookBody))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	for key, value := range cfg.WebhookHeaders {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
