package mock

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func intPtr(i int) *int { return &i }

func validEndpoint() *Endpoint {
	return &Endpoint{
		ID:     "users",
		Method: "GET",
		Path:   "/users/{id}",
		Responses: []CandidateResponse{
			{ID: "ok", Content: TemplatedContent{StatusCode: 200, Body: `{"id":"${request.pathParam(id)}"}`}},
		},
	}
}

// =============================================================================
// Body decoding
// =============================================================================

func TestTemplatedContent_UnmarshalJSON_Body(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		wantBody string
	}{
		{"string body", `{"statusCode":200,"body":"hello ${uuid}"}`, "hello ${uuid}"},
		{"object body", `{"statusCode":200,"body":{"id":1,"name":"${faker.name}"}}`, `{"id":1,"name":"${faker.name}"}`},
		{"array body", `{"body":[1,2]}`, `[1,2]`},
		{"number body", `{"body":42}`, `42`},
		{"null body", `{"body":null}`, ``},
		{"no body", `{"statusCode":204}`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c TemplatedContent
			require.NoError(t, json.Unmarshal([]byte(tt.json), &c))
			assert.Equal(t, tt.wantBody, c.Body)
		})
	}
}

func TestTemplatedContent_UnmarshalJSON_KeepsOtherFields(t *testing.T) {
	var c TemplatedContent
	err := json.Unmarshal([]byte(`{
		"statusCode": 201,
		"headers": {"X-B": "2", "X-A": "${uuid}"},
		"body": {"ok": true},
		"repeat": {"count": 3, "separator": ","},
		"delayMs": 5
	}`), &c)
	require.NoError(t, err)

	assert.Equal(t, 201, c.StatusCode)
	assert.Equal(t, HeaderList{{Name: "X-B", Value: "2"}, {Name: "X-A", Value: "${uuid}"}}, c.Headers)
	assert.Equal(t, `{"ok":true}`, c.Body)
	require.NotNil(t, c.Repeat)
	assert.Equal(t, 3, c.Repeat.Count)
	assert.Equal(t, ",", c.Repeat.Separator)
	assert.Equal(t, 5, c.DelayMs)
}

func TestTemplatedContent_UnmarshalYAML_Body(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantBody string
	}{
		{"scalar", "statusCode: 200\nbody: hello\n", "hello"},
		{"block scalar", "body: |\n  {\"id\": \"${uuid}\"}\n", "{\"id\": \"${uuid}\"}\n"},
		{"mapping", "body:\n  id: 1\n  name: ada\n", `{"id":1,"name":"ada"}`},
		{"sequence", "body: [a, b]\n", `["a","b"]`},
		{"absent", "statusCode: 204\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c TemplatedContent
			require.NoError(t, yaml.Unmarshal([]byte(tt.yaml), &c))
			assert.Equal(t, tt.wantBody, c.Body)
		})
	}
}

func TestTemplatedContent_UnmarshalYAML_NotMapping(t *testing.T) {
	var c TemplatedContent
	assert.Error(t, yaml.Unmarshal([]byte("- a\n- b\n"), &c))
}

func TestHeaderList_Forms(t *testing.T) {
	var fromList HeaderList
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"A","value":"1"},{"name":"B","value":"2"}]`), &fromList))
	assert.Equal(t, HeaderList{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}}, fromList)

	var fromYAML HeaderList
	require.NoError(t, yaml.Unmarshal([]byte("Z: last\nA: first\nN: 7\n"), &fromYAML))
	assert.Equal(t, HeaderList{{Name: "Z", Value: "last"}, {Name: "A", Value: "first"}, {Name: "N", Value: "7"}}, fromYAML)

	var fromYAMLList HeaderList
	require.NoError(t, yaml.Unmarshal([]byte("- name: A\n  value: \"1\"\n"), &fromYAMLList))
	assert.Equal(t, HeaderList{{Name: "A", Value: "1"}}, fromYAMLList)

	var numeric HeaderList
	require.NoError(t, json.Unmarshal([]byte(`{"X-Count": 3, "X-Flag": true}`), &numeric))
	assert.Equal(t, HeaderList{{Name: "X-Count", Value: "3"}, {Name: "X-Flag", Value: "true"}}, numeric)

	var bad HeaderList
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &bad))

	v, ok := fromList.Get("B")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = fromList.Get("b")
	assert.False(t, ok)
}

// =============================================================================
// Ordering
// =============================================================================

func TestEndpoint_AssignOrder(t *testing.T) {
	e := &Endpoint{
		Responses: []CandidateResponse{
			{ID: "a"},
			{ID: "b", Order: intPtr(7)},
			{ID: "c"},
		},
		Default: &CandidateResponse{ID: "d", Order: intPtr(99)},
	}
	e.AssignOrder()

	assert.Equal(t, 0, e.Responses[0].ConfiguredOrder)
	assert.Equal(t, 7, e.Responses[1].ConfiguredOrder)
	assert.Equal(t, 2, e.Responses[2].ConfiguredOrder)
	assert.Equal(t, 99, e.Default.ConfiguredOrder)
}

func TestEndpoint_ConfiguredOrderNotSerialized(t *testing.T) {
	c := CandidateResponse{ID: "a", ConfiguredOrder: 5}
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "5")
}

func TestRetryPolicy_Attempts(t *testing.T) {
	var nilPolicy *RetryPolicy
	assert.Equal(t, 1, nilPolicy.Attempts())
	assert.Equal(t, 1, (&RetryPolicy{}).Attempts())
	assert.Equal(t, 3, (&RetryPolicy{MaxAttempts: 3}).Attempts())
	assert.Equal(t, MaxRetryAttempts, (&RetryPolicy{MaxAttempts: 50}).Attempts())
}

func TestEndpoint_Templates(t *testing.T) {
	e := validEndpoint()
	e.Responses[0].Content.Headers = HeaderList{{Name: "X-Id", Value: "${uuid}"}}
	e.Responses[0].Pushback = &PushbackSpec{URL: "http://hook/${var:id}", Body: "{}"}
	e.Default = &CandidateResponse{ID: "fallback", Content: TemplatedContent{Body: "none"}}

	var locs []string
	for _, ref := range e.Templates() {
		locs = append(locs, ref.Location)
	}
	assert.Equal(t, []string{
		"default.content.body",
		"responses[0].content.body",
		"responses[0].content.headers[0].value",
		"responses[0].pushback.body",
		"responses[0].pushback.url",
	}, locs)
}

func TestEndpoint_Dataset(t *testing.T) {
	e := &Endpoint{Datasets: []Dataset{{Name: "users"}}}
	d, ok := e.Dataset("users")
	require.True(t, ok)
	assert.Equal(t, "users", d.Name)
	_, ok = e.Dataset("orders")
	assert.False(t, ok)
}

// =============================================================================
// Request
// =============================================================================

func TestNewRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/orders?expand=items&expand=user&empty", strings.NewReader(`{"total":12}`))
	r.Header.Set("Content-Type", "application/json")
	body := []byte(`{"total":12}`)

	req := NewRequest(r, body)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/orders", req.Path)
	assert.Equal(t, "application/json", req.Header("content-type"))
	assert.True(t, req.HasHeader("Content-Type"))
	assert.False(t, req.HasHeader("X-Missing"))

	v, ok := req.QueryValue("expand")
	assert.True(t, ok)
	assert.Equal(t, "items", v)
	v, ok = req.QueryValue("empty")
	assert.True(t, ok)
	assert.Equal(t, "", v)
	_, ok = req.QueryValue("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{"total": float64(12)}, req.JSON())
	assert.Nil(t, req.XML())
}

func TestRequest_XML(t *testing.T) {
	req := &Request{Body: []byte(`<a><b>1</b></a>`)}
	require.NotNil(t, req.XML())
	assert.Nil(t, req.JSON())
	assert.Equal(t, "1", req.XML().FindElement("//b").Text())
}

func TestRequest_ZeroValue(t *testing.T) {
	var req Request
	assert.Equal(t, "", req.Header("X"))
	_, ok := req.QueryValue("q")
	assert.False(t, ok)
	_, ok = req.Var("v")
	assert.False(t, ok)
}

// =============================================================================
// Validation
// =============================================================================

func TestEndpoint_Validate_Valid(t *testing.T) {
	assert.NoError(t, validEndpoint().Validate())
}

func TestEndpoint_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(e *Endpoint)
		wantField string
	}{
		{"missing id", func(e *Endpoint) { e.ID = "" }, "id"},
		{"bad method", func(e *Endpoint) { e.Method = "FETCH" }, "method"},
		{"relative path", func(e *Endpoint) { e.Path = "users" }, "path"},
		{"no responses", func(e *Endpoint) { e.Responses = nil }, "responses"},
		{"response id missing", func(e *Endpoint) { e.Responses[0].ID = "" }, "responses[0].id"},
		{"duplicate response id", func(e *Endpoint) {
			e.Responses = append(e.Responses, CandidateResponse{ID: "ok"})
		}, "responses[1].id"},
		{"bad status", func(e *Endpoint) { e.Responses[0].Content.StatusCode = 42 }, "responses[0].content.statusCode"},
		{"body and file", func(e *Endpoint) { e.Responses[0].Content.BodyFile = "x.json" }, "responses[0].content"},
		{"negative delay", func(e *Endpoint) { e.Responses[0].Content.DelayMs = -1 }, "responses[0].content.delayMs"},
		{"huge delay", func(e *Endpoint) { e.Responses[0].Content.DelayMs = 30001 }, "responses[0].content.delayMs"},
		{"negative repeat", func(e *Endpoint) {
			e.Responses[0].Content.Repeat = &RepeatSpec{Count: -1}
		}, "responses[0].content.repeat.count"},
		{"bad header name", func(e *Endpoint) {
			e.Responses[0].Content.Headers = HeaderList{{Name: "Bad Header", Value: "x"}}
		}, "responses[0].content.headers"},
		{"default with match", func(e *Endpoint) {
			e.Default = &CandidateResponse{ID: "d", Match: &MatchRequest{}}
		}, "default.match"},
		{"bad logic", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Logic: "xor"}
		}, "responses[0].match.logic"},
		{"unknown field", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Conditions: []Condition{{Field: "cookie", Op: OpEquals}}}
		}, "responses[0].match.conditions[0].field"},
		{"header without key", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Conditions: []Condition{{Field: FieldHeader, Op: OpExists}}}
		}, "responses[0].match.conditions[0].key"},
		{"bad regex", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Conditions: []Condition{{Field: FieldBody, Op: OpRegex, Value: "[unclosed"}}}
		}, "responses[0].match.conditions[0].value"},
		{"unknown op", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Conditions: []Condition{{Field: FieldBody, Op: "like"}}}
		}, "responses[0].match.conditions[0].op"},
		{"exists on method", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Conditions: []Condition{{Field: FieldMethod, Op: OpExists}}}
		}, "responses[0].match.conditions[0].op"},
		{"empty expr", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Conditions: []Condition{{Op: OpExpr}}}
		}, "responses[0].match.conditions[0].value"},
		{"bad jsonpath", func(e *Endpoint) {
			e.Responses[0].Match = &MatchRequest{Conditions: []Condition{{Field: FieldJSONPath, Key: "$.items[", Op: OpExists}}}
		}, "responses[0].match.conditions[0].key"},
		{"pushback without url", func(e *Endpoint) {
			e.Responses[0].Pushback = &PushbackSpec{}
		}, "responses[0].pushback.url"},
		{"pushback bad method", func(e *Endpoint) {
			e.Responses[0].Pushback = &PushbackSpec{URL: "http://x", Method: "SEND"}
		}, "responses[0].pushback.method"},
		{"pushback too many attempts", func(e *Endpoint) {
			e.Responses[0].Pushback = &PushbackSpec{URL: "http://x", Retry: &RetryPolicy{MaxAttempts: 6}}
		}, "responses[0].pushback.retry.maxAttempts"},
		{"extract without name", func(e *Endpoint) {
			e.Extract = []ExtractionRule{{Kind: ExtractStatic}}
		}, "extract[0].name"},
		{"extract unknown kind", func(e *Endpoint) {
			e.Extract = []ExtractionRule{{Name: "x", Kind: "xpath"}}
		}, "extract[0].kind"},
		{"extract regex group out of range", func(e *Endpoint) {
			e.Extract = []ExtractionRule{{Name: "x", Kind: ExtractRegex, Expr: `id=(\d+)`, Group: 2}}
		}, "extract[0].group"},
		{"extract unknown dataset", func(e *Endpoint) {
			e.Extract = []ExtractionRule{{Name: "x", Kind: ExtractDataset, Dataset: "nope"}}
		}, "extract[0].dataset"},
		{"extract unknown source", func(e *Endpoint) {
			e.Extract = []ExtractionRule{{Name: "x", Kind: ExtractStatic, From: "cookie"}}
		}, "extract[0].from"},
		{"dataset ragged row", func(e *Endpoint) {
			e.Datasets = []Dataset{{Name: "d", Columns: []string{"a", "b"}, Rows: [][]string{{"1"}}}}
		}, "datasets[0].rows[0]"},
		{"dataset duplicate", func(e *Endpoint) {
			d := Dataset{Name: "d", Columns: []string{"a"}, Rows: [][]string{{"1"}}}
			e.Datasets = []Dataset{d, d}
		}, "datasets[1].name"},
		{"dataset bad mode", func(e *Endpoint) {
			e.Datasets = []Dataset{{Name: "d", Columns: []string{"a"}, Rows: [][]string{{"1"}}, Mode: "shuffle"}}
		}, "datasets[0].mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEndpoint()
			tt.mutate(e)
			err := e.Validate()
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field, ve.Message)
		})
	}
}

func TestEndpoint_Validate_FullFeatured(t *testing.T) {
	e := validEndpoint()
	e.Datasets = []Dataset{{Name: "users", Columns: []string{"id", "name"}, Rows: [][]string{{"1", "ada"}}, Mode: DatasetRandom}}
	e.Extract = []ExtractionRule{
		{Name: "user", Kind: ExtractDataset, Dataset: "users"},
		{Name: "token", Kind: ExtractHeader, From: SourceHeader, Expr: "Authorization"},
		{Name: "ref", Kind: ExtractRegex, Expr: `ref=(\w+)`, Group: 1},
		{Name: "total", Kind: ExtractPath, Expr: "$.order.total"},
		{Name: "sku", Kind: ExtractPath, Expr: "//item/@sku"},
	}
	e.Responses[0].Match = &MatchRequest{Logic: LogicOr, Conditions: []Condition{
		{Field: FieldHeader, Key: "X-Mode", Op: OpExists, Negate: true},
		{Op: OpExpr, Value: `method == "GET"`},
	}}
	e.Responses[0].Pushback = &PushbackSpec{
		URL:     "http://hooks.local/${var:user.id}",
		Method:  "POST",
		Retry:   &RetryPolicy{MaxAttempts: 3, BackoffMs: 10},
		Extract: []ExtractionRule{{Name: "status", Kind: ExtractPath, From: SourceResponse, Expr: "status"}},
	}
	assert.NoError(t, e.Validate())
}

func TestValidMethod(t *testing.T) {
	assert.True(t, ValidMethod("get"))
	assert.True(t, ValidMethod("OPTIONS"))
	assert.False(t, ValidMethod("TRACE"))
}

func TestCondition_ValueString(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{"x", "x"},
		{float64(3), "3"},
		{2.5, "2.5"},
		{true, "true"},
		{7, "7"},
		{map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		c := Condition{Value: tt.value}
		assert.Equal(t, tt.want, c.ValueString())
	}
}
