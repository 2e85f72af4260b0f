package roadmap

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"skillforge-api/internal/domain/entity"
	"skillforge-api/pkg/jsontree"
)

type recordedCall struct {
	url       string
	maxTokens int
	prompt    string
}

// fakeCaller 按端点 URL 依次返回预设结果
type fakeCaller struct {
	mu        sync.Mutex
	responses map[string][]entity.CallOutcome
	calls     []recordedCall
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]entity.CallOutcome)}
}

func (f *fakeCaller) on(url string, status int, body *jsontree.Node) *fakeCaller {
	f.responses[url] = append(f.responses[url], entity.CallOutcome{StatusCode: status, Body: body, Endpoint: url})
	return f
}

func (f *fakeCaller) Call(ctx context.Context, ep entity.EndpointSpec, req entity.GenerationRequest) entity.CallOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return entity.CallOutcome{StatusCode: 499, Endpoint: ep.URL}
	}
	f.calls = append(f.calls, recordedCall{url: ep.URL, maxTokens: req.MaxOutputTokens(), prompt: req.Prompt()})
	queue := f.responses[ep.URL]
	if len(queue) == 0 {
		return entity.CallOutcome{StatusCode: http.StatusGatewayTimeout, Body: jsontree.Map(), Endpoint: ep.URL}
	}
	out := queue[0]
	f.responses[ep.URL] = queue[1:]
	return out
}

type fakeDiagnostics struct {
	calls    int
	timeout  int
	listings *entity.ModelListings
}

func (f *fakeDiagnostics) Collect(_ context.Context, timeoutUnits int) *entity.ModelListings {
	f.calls++
	f.timeout = timeoutUnits
	return f.listings
}

type fakePrompter struct{ err error }

func (p fakePrompter) Render(_ context.Context, topic string) (string, error) {
	return "plan for " + topic, p.err
}

var testEndpoints = []entity.EndpointSpec{
	{URL: "https://api.test/v1/models/pro:generateContent", Model: "pro", Auth: entity.AuthQuery},
	{URL: "https://api.test/v1beta/models/pro:generateContent", Model: "pro", Auth: entity.AuthHeader},
	{URL: "https://api.test/v1/models/flash:generateContent", Model: "flash", Auth: entity.AuthQuery},
}

var testSettings = GenerationSettings{
	MaxOutputTokens: 8192,
	Sampling:        entity.SamplingConfig{Temperature: 0.7, TopP: 0.95, TopK: 40},
}

func newTestGenerator(caller *fakeCaller, diag *fakeDiagnostics) *Generator {
	return NewGenerator(caller, diag, fakePrompter{}, testEndpoints, testSettings)
}

func textBody(t *testing.T, texts ...string) *jsontree.Node {
	t.Helper()
	parts := make([]*jsontree.Node, 0, len(texts))
	for _, s := range texts {
		parts = append(parts, jsontree.Map(jsontree.F("text", jsontree.String(s))))
	}
	return jsontree.Map(jsontree.F("candidates", jsontree.Seq(
		jsontree.Map(jsontree.F("content", jsontree.Map(jsontree.F("parts", jsontree.Seq(parts...))))),
	)))
}

func asGenerationError(t *testing.T, err error) *entity.GenerationError {
	t.Helper()
	var ge *entity.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("error = %v, want *entity.GenerationError", err)
	}
	return ge
}

func TestGenerate_FallsThroughToLastEndpoint(t *testing.T) {
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusNotFound, mustParse(t, `{"error":{"code":404}}`)).
		on(testEndpoints[1].URL, http.StatusTooManyRequests, mustParse(t, `{"error":{"code":429}}`)).
		on(testEndpoints[2].URL, http.StatusOK, textBody(t, "  Step 1 ", "Step 2"))
	diag := &fakeDiagnostics{}

	res, err := newTestGenerator(caller, diag).Generate(context.Background(), "Go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Step 1\nStep 2" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Endpoint != testEndpoints[2].URL {
		t.Fatalf("endpoint = %q", res.Endpoint)
	}
	if len(caller.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(caller.calls))
	}
	for i, c := range caller.calls {
		if c.url != testEndpoints[i].URL {
			t.Fatalf("call %d went to %s", i, c.url)
		}
		if c.maxTokens != 8192 || c.prompt != "plan for Go" {
			t.Fatalf("call %d request = %+v", i, c)
		}
	}
	if diag.calls != 0 {
		t.Fatal("diagnostics must not run on success")
	}
}

func TestGenerate_TruncationRetryOnSameEndpoint(t *testing.T) {
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusOK, mustParse(t, `{"candidates":[{"content":{},"finishReason":"MAX_TOKENS"}]}`)).
		on(testEndpoints[0].URL, http.StatusOK, textBody(t, "Hello World"))

	res, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Hello World" || res.Endpoint != testEndpoints[0].URL {
		t.Fatalf("result = %+v", res)
	}
	if len(caller.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(caller.calls))
	}
	if caller.calls[0].maxTokens != 8192 || caller.calls[1].maxTokens != TruncationRetryMaxOutputTokens {
		t.Fatalf("budgets = %d, %d", caller.calls[0].maxTokens, caller.calls[1].maxTokens)
	}
	if caller.calls[1].url != testEndpoints[0].URL {
		t.Fatalf("retry went to %s", caller.calls[1].url)
	}
}

func TestGenerate_TruncationRetryStillEmpty(t *testing.T) {
	long := strings.Repeat("é", 2000)
	first := mustParse(t, `{"candidates":[{"content":{"role":"model"},"finishReason":"MAX_TOKENS","note":"`+long+`"}]}`)
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusOK, first).
		on(testEndpoints[0].URL, http.StatusOK, mustParse(t, `{"candidates":[{"content":{"parts":[{"inlineData":{}}]}}]}`))

	_, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	ge := asGenerationError(t, err)
	if ge.Reason != entity.ReasonNoText || !ge.Truncated {
		t.Fatalf("error = %+v", ge)
	}
	if ge.Endpoint != testEndpoints[0].URL {
		t.Fatalf("endpoint = %q", ge.Endpoint)
	}
	if n := utf8.RuneCountInString(ge.Preview); n != PreviewMaxChars {
		t.Fatalf("preview length = %d", n)
	}
	if !strings.HasPrefix(ge.Preview, `[{"content":{"role":"model"},"finishReason":"MAX_TOKENS"`) {
		t.Fatalf("preview = %.80s", ge.Preview)
	}
	if len(caller.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(caller.calls))
	}
}

func TestGenerate_NoTextWithoutTruncation(t *testing.T) {
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusOK, mustParse(t, `{"candidates":[{"content":{"parts":[]},"finishReason":"STOP"}]}`))

	_, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	ge := asGenerationError(t, err)
	if ge.Reason != entity.ReasonNoText || ge.Truncated {
		t.Fatalf("error = %+v", ge)
	}
	if ge.Preview != `[{"content":{"parts":[]},"finishReason":"STOP"}]` {
		t.Fatalf("preview = %q", ge.Preview)
	}
	if len(caller.calls) != 1 {
		t.Fatalf("calls = %d, want 1 (no retry, no fallthrough)", len(caller.calls))
	}
}

func TestGenerate_WhitespaceOnlyTextIsSuccess(t *testing.T) {
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusOK, mustParse(t, `{"candidates":[{"content":{"parts":[{"text":"   "}]},"finishReason":"MAX_TOKENS"}]}`))

	res, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "" || res.Endpoint != testEndpoints[0].URL {
		t.Fatalf("result = %+v", res)
	}
	if len(caller.calls) != 1 {
		t.Fatalf("calls = %d, want 1 (extracted strings skip the truncation retry)", len(caller.calls))
	}
}

func TestGenerate_TruncationRetryWithEmptyTextIsSuccess(t *testing.T) {
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusOK, mustParse(t, `{"candidates":[{"content":{},"finishReason":"MAX_TOKENS"}]}`)).
		on(testEndpoints[0].URL, http.StatusOK, textBody(t, ""))

	res, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "" || len(caller.calls) != 2 {
		t.Fatalf("result = %+v calls = %d", res, len(caller.calls))
	}
}

func TestGenerate_SafetyBlockIsTerminal(t *testing.T) {
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusOK, mustParse(t, `{"promptFeedback":{"blockReason":"SAFETY","safetyRatings":[]}}`)).
		on(testEndpoints[1].URL, http.StatusOK, textBody(t, "never reached"))

	_, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	ge := asGenerationError(t, err)
	if ge.Reason != entity.ReasonBlocked {
		t.Fatalf("reason = %s", ge.Reason)
	}
	if got := ge.Details.String(); got != `{"blockReason":"SAFETY","safetyRatings":[]}` {
		t.Fatalf("details = %s", got)
	}
	if len(caller.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(caller.calls))
	}
}

func TestGenerate_EmptyBlockReasonIsNotABlock(t *testing.T) {
	caller := newFakeCaller().
		on(testEndpoints[0].URL, http.StatusOK, mustParse(t,
			`{"promptFeedback":{"blockReason":""},"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))

	res, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	if err != nil || res.Text != "ok" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestGenerate_NoCandidatesIsTerminal(t *testing.T) {
	for _, body := range []string{`{}`, `{"candidates":[]}`, `{"candidates":null}`} {
		caller := newFakeCaller().
			on(testEndpoints[0].URL, http.StatusOK, mustParse(t, body)).
			on(testEndpoints[1].URL, http.StatusOK, textBody(t, "never reached"))

		_, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
		ge := asGenerationError(t, err)
		if ge.Reason != entity.ReasonNoCandidates || ge.Endpoint != testEndpoints[0].URL {
			t.Fatalf("body %s: error = %+v", body, ge)
		}
		if len(caller.calls) != 1 {
			t.Fatalf("body %s: calls = %d", body, len(caller.calls))
		}
	}
}

func TestGenerate_AllEndpointsExhausted(t *testing.T) {
	caller := newFakeCaller()
	for _, ep := range testEndpoints {
		caller.on(ep.URL, http.StatusGatewayTimeout, jsontree.Map(
			jsontree.F("error", jsontree.String("Gateway timeout while calling model")),
			jsontree.F("exception", jsontree.String("context deadline exceeded")),
		))
	}
	diag := &fakeDiagnostics{listings: &entity.ModelListings{
		V1:     mustParse(t, `{"models":[]}`),
		V1Beta: mustParse(t, `{"error":"Failed to fetch v1beta models: timeout"}`),
	}}

	_, err := newTestGenerator(caller, diag).Generate(context.Background(), "Go")
	ge := asGenerationError(t, err)
	if ge.Reason != entity.ReasonUpstreamExhausted || ge.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("error = %+v", ge)
	}
	if ge.Error() != "Upstream error 504" {
		t.Fatalf("message = %q", ge.Error())
	}
	if ge.Endpoint != testEndpoints[2].URL {
		t.Fatalf("endpoint = %q", ge.Endpoint)
	}
	if msg, _ := ge.Details.Get("error").Str(); msg != "Gateway timeout while calling model" {
		t.Fatalf("details = %s", ge.Details)
	}
	if diag.calls != 1 || diag.timeout != DiagnosticTimeoutUnits {
		t.Fatalf("diagnostics calls=%d timeout=%d", diag.calls, diag.timeout)
	}
	if ge.Listings != diag.listings {
		t.Fatal("listings not attached")
	}
	if len(caller.calls) != len(testEndpoints) {
		t.Fatalf("calls = %d", len(caller.calls))
	}
}

func TestGenerate_IgnoresCallerCancellation(t *testing.T) {
	caller := newFakeCaller().on(testEndpoints[0].URL, http.StatusOK, textBody(t, "done"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(ctx, "Go")
	if err != nil || res.Text != "done" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestGenerate_PromptFailure(t *testing.T) {
	g := NewGenerator(newFakeCaller(), &fakeDiagnostics{}, fakePrompter{err: errors.New("boom")}, testEndpoints, testSettings)
	_, err := g.Generate(context.Background(), "Go")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
	var ge *entity.GenerationError
	if errors.As(err, &ge) {
		t.Fatal("prompt failure is not a generation error")
	}
}

func TestGenerate_JoinsAllCandidatesInOrder(t *testing.T) {
	body := mustParse(t, `{"candidates":[
		{"content":{"parts":[{"text":"a"},{"text":"b"}]}},
		{"content":{"parts":[{"text":"c"}]}, "text":"outside content is ignored"}
	]}`)
	caller := newFakeCaller().on(testEndpoints[0].URL, http.StatusOK, body)

	res, err := newTestGenerator(caller, &fakeDiagnostics{}).Generate(context.Background(), "Go")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "a\nb\nc" {
		t.Fatalf("text = %q", res.Text)
	}
}
