package sheetgrid

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type client struct {
	t      *testing.T
	srv    *httptest.Server
	cookie *http.Cookie
}

func newTestServer(t *testing.T) *client {
	t.Helper()
	c, _ := newTestHandler(t, func(*Config) {})
	return c
}

func newTestHandler(t *testing.T, edit func(*Config)) (*client, *Handler) {
	t.Helper()
	cfg := testConfig(
		ColumnSpec{ID: "name", Name: "Name", Filterable: true},
		ColumnSpec{ID: "count", Name: "Count"},
	)
	src := &fakeSource{values: [][]string{
		{"name", "count"},
		{"b", "2"},
		{"a", "1"},
		{"c", "3"},
	}}
	edit(cfg)
	h, err := NewHandler(cfg, src)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}, h
}

func (c *client) open() string {
	req, err := http.NewRequest(http.MethodGet, c.srv.URL+"/", nil)
	require.NoError(c.t, err)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	require.NotNil(c.t, c.cookie, "expected a session cookie")
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func (c *client) post(path string, form url.Values) (int, string) {
	req, err := http.NewRequest(http.MethodPost, c.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func order(body string, values ...string) bool {
	last := -1
	for _, v := range values {
		i := strings.Index(body, "<td>"+v+"</td>")
		if i < 0 || i < last {
			return false
		}
		last = i
	}
	return true
}

func TestHandlerIndex(t *testing.T) {
	c := newTestServer(t)
	body := c.open()

	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, `/static/sheetgrid.js`)
	assert.True(t, order(body, "a", "b", "c"), "expected rows sorted by name: %s", body)
}

func TestHandlerSort(t *testing.T) {
	c := newTestServer(t)
	c.open()

	code, body := c.post("/sort/name", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "<html")
	assert.True(t, order(body, "a", "b", "c"))

	_, body = c.post("/sort/name", nil)
	assert.True(t, order(body, "c", "b", "a"), "second click reverses: %s", body)

	code, _ = c.post("/sort/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandlerFilterFlow(t *testing.T) {
	c := newTestServer(t)
	c.open()

	geometry := url.Values{
		"left": {"10"}, "top": {"20"}, "width": {"100"}, "height": {"30"},
		"scroll_x": {"0"}, "scroll_y": {"50"},
	}
	code, body := c.post("/filter/name", geometry)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `id="filter-name"`)
	assert.Contains(t, body, "top: 98px")
	assert.Contains(t, body, `id="filter-name-deselect"`)

	_, body = c.post("/filter/name/options", url.Values{"value": {"a"}})
	assert.Contains(t, body, "<td>a</td>")
	assert.NotContains(t, body, "<td>b</td>")
	assert.Contains(t, body, `id="filter-name-select"`, "popover stays open and offers select all")
	assert.Contains(t, body, "top: 98px", "popover keeps its position")

	_, body = c.post("/filter/name/batch", url.Values{"mode": {"select"}})
	assert.True(t, order(body, "a", "b", "c"))

	code, _ = c.post("/filter/name/batch", url.Values{"mode": {"flip"}})
	assert.Equal(t, http.StatusBadRequest, code)

	_, body = c.post("/scroll", url.Values{"left": {"10"}, "top": {"-30"}, "width": {"100"}, "height": {"30"}, "scroll_y": {"100"}})
	assert.Contains(t, body, "top: 98px")

	_, body = c.post("/dismiss", nil)
	assert.NotContains(t, body, `class="box"`)

	code, _ = c.post("/filter/count", geometry)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandlerSessionRequired(t *testing.T) {
	c := newTestServer(t)

	code, _ := c.post("/sort/name", nil)
	assert.Equal(t, http.StatusGone, code)

	c.cookie = &http.Cookie{Name: SessionCookie, Value: "unknown"}
	code, _ = c.post("/dismiss", nil)
	assert.Equal(t, http.StatusGone, code)
}

func TestHandlerSessionsAreIndependent(t *testing.T) {
	first := newTestServer(t)
	first.open()
	second := &client{t: t, srv: first.srv}
	second.open()

	_, body := first.post("/filter/name/options", url.Values{"value": {"a"}})
	assert.NotContains(t, body, "<td>b</td>")

	_, body = second.post("/dismiss", nil)
	assert.Contains(t, body, "<td>b</td>")
}

func TestHandlerReloadReplacesSession(t *testing.T) {
	c, h := newTestHandler(t, func(cfg *Config) { cfg.Session.MaxSessions = 3 })

	for i := 0; i < 5; i++ {
		previous := c.cookie
		c.open()
		if previous != nil {
			assert.NotEqual(t, previous.Value, c.cookie.Value)
			_, ok := h.sessions.Get(previous.Value)
			assert.False(t, ok, "reload %d should drop the old session", i+1)
		}
	}
	assert.Equal(t, 1, h.sessions.Len())
}

func TestHandlerFullPoolEvictsIdlest(t *testing.T) {
	c, h := newTestHandler(t, func(cfg *Config) { cfg.Session.MaxSessions = 2 })

	visitors := make([]*client, 4)
	for i := range visitors {
		visitors[i] = &client{t: t, srv: c.srv}
		visitors[i].open()
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 2, h.sessions.Len())

	for _, v := range visitors[:2] {
		code, _ := v.post("/dismiss", nil)
		assert.Equal(t, http.StatusGone, code)
	}
	code, _ := visitors[3].post("/dismiss", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHandlerSortThenDismissClosesPopover(t *testing.T) {
	c := newTestServer(t)
	c.open()
	c.post("/filter/name", url.Values{"left": {"10"}, "top": {"20"}, "width": {"100"}, "height": {"30"}})

	// a sort click also reaches the document click listener
	_, body := c.post("/sort/name", nil)
	assert.Contains(t, body, `class="box"`)
	_, body = c.post("/dismiss", nil)
	assert.NotContains(t, body, `class="box"`)
	assert.True(t, order(body, "a", "b", "c"))
}

func TestScriptSerializesInteractions(t *testing.T) {
	c := newTestServer(t)
	resp, err := http.Get(c.srv.URL + "/static/sheetgrid.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	script := string(data)

	assert.Contains(t, script, "queue = queue")
	assert.Contains(t, script, "requestAnimationFrame")
}

func TestHandlerExport(t *testing.T) {
	c := newTestServer(t)
	c.open()
	c.post("/filter/name/options", url.Values{"value": {"a", "c"}})
	c.post("/sort/name", nil)
	c.post("/sort/name", nil)

	req, _ := http.NewRequest(http.MethodGet, c.srv.URL+"/export.xlsx", nil)
	req.AddCookie(c.cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, _ := io.ReadAll(resp.Body)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Count"}, {"c", "3"}, {"a", "1"}}, rows)
}

func TestHandlerStatic(t *testing.T) {
	c := newTestServer(t)
	resp, err := http.Get(c.srv.URL + "/static/sheetgrid.css")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(c.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestParseAnchor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/scroll", strings.NewReader("left=1.5&top=2&width=3&height=4&scroll_x=5&scroll_y=6"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	a := ParseAnchor(r)
	require.NotNil(t, a)
	assert.Equal(t, Anchor{Rect: Rect{Left: 1.5, Top: 2, Width: 3, Height: 4}, Scroll: Scroll{X: 5, Y: 6}}, *a)

	empty := httptest.NewRequest(http.MethodPost, "/scroll", nil)
	assert.Nil(t, ParseAnchor(empty))
}

func TestNewHandlerRejectsConfig(t *testing.T) {
	cfg := testConfig(ColumnSpec{ID: "name"})
	cfg.Source.Key = ""
	_, err := NewHandler(cfg, &fakeSource{})
	assert.ErrorIs(t, err, ErrConfig)
}
