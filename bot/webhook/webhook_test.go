package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/romnatson3/pharmacy/bot/funnel"
	"github.com/romnatson3/pharmacy/catalog"
	"github.com/romnatson3/pharmacy/core/cache"
)

type inlineQueue struct{}

func (inlineQueue) Enqueue(ctx context.Context, _ string, run func(ctx context.Context) error) error {
	return run(ctx)
}

// noopTasks records only which task ran.
type noopTasks struct {
	called string
}

func (n *noopTasks) Welcome(context.Context, catalog.User, int64) error {
	n.called = "welcome"
	return nil
}
func (n *noopTasks) Districts(context.Context, int64) error       { n.called = "districts"; return nil }
func (n *noopTasks) SearchPrompt(context.Context, int64) error    { n.called = "search_prompt"; return nil }
func (n *noopTasks) TypeMore(context.Context, int64) error        { n.called = "type_more"; return nil }
func (n *noopTasks) StartOver(context.Context, int64) error       { n.called = "start_over"; return nil }
func (n *noopTasks) ProductOfTheDay(context.Context, int64) error { n.called = "product"; return nil }
func (n *noopTasks) MedicationChoices(context.Context, int64, int64, string) error {
	n.called = "medication_choices"
	return nil
}
func (n *noopTasks) SearchResult(context.Context, int64, int64, string) error {
	n.called = "search_result"
	return nil
}
func (n *noopTasks) ChainStocks(context.Context, int64, int64, int64) error {
	n.called = "chain_stocks"
	return nil
}

func newApp(secret string) (*fiber.App, *noopTasks) {
	tasks := &noopTasks{}
	f := funnel.New(funnel.NewState(cache.NewMemoryStore()), inlineQueue{}, tasks)
	app := fiber.New()
	New(secret, f).Register(app, "/webhook/telegram")
	return app, tasks
}

func post(t *testing.T, app *fiber.App, secret, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

func TestRejectsWrongSecret(t *testing.T) {
	app, tasks := newApp("s3cret")
	resp := post(t, app, "wrong", `{"update_id":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if tasks.called != "" {
		t.Fatalf("task %q ran for unauthorized request", tasks.called)
	}
}

func TestRejectsMissingSecret(t *testing.T) {
	app, _ := newApp("s3cret")
	resp := post(t, app, "", `{"update_id":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMalformedBodyStillAcknowledged(t *testing.T) {
	app, tasks := newApp("s3cret")
	resp := post(t, app, "s3cret", `{"update_id":`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if tasks.called != "" {
		t.Fatalf("task %q ran for malformed body", tasks.called)
	}
}

func TestDispatchesMessage(t *testing.T) {
	app, tasks := newApp("s3cret")
	body := `{"update_id":10,"message":{"message_id":1,"text":"/start",` +
		`"from":{"id":7,"first_name":"Петро"},"chat":{"id":70,"type":"private"}}}`
	resp := post(t, app, "s3cret", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if tasks.called != "welcome" {
		t.Fatalf("task = %q, want welcome", tasks.called)
	}
}

func TestDispatchesCallback(t *testing.T) {
	app, tasks := newApp("s3cret")
	body := `{"update_id":11,"callback_query":{"id":"1","data":"district|all",` +
		`"from":{"id":7},"message":{"message_id":2,"chat":{"id":70,"type":"private"}}}}`
	resp := post(t, app, "s3cret", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if tasks.called != "search_prompt" {
		t.Fatalf("task = %q, want search_prompt", tasks.called)
	}
}

func TestUnknownUpdateAcknowledged(t *testing.T) {
	app, tasks := newApp("s3cret")
	resp := post(t, app, "s3cret", `{"update_id":12,"edited_message":null}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if tasks.called != "" {
		t.Fatalf("task %q ran for unhandled update", tasks.called)
	}
}
