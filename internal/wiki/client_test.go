package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "Bot", "secret")
	require.NoError(t, err)
	return c
}

func TestPageText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "query", r.URL.Query().Get("action"))
		assert.Equal(t, "Some page", r.URL.Query().Get("titles"))
		w.Write([]byte(`{"query":{"pages":[{"revisions":[{"slots":{"main":{"content":"hello wikitext"}}}]}]}}`))
	})

	text, err := c.PageText(context.Background(), "Some page")
	require.NoError(t, err)
	assert.Equal(t, "hello wikitext", text)
}

func TestPageTextMissingPageIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":{"pages":[{"missing":true}]}}`))
	})

	text, err := c.PageText(context.Background(), "No such page")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestAPIErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"readapidenied","info":"You need read permission"}}`))
	})

	_, err := c.PageText(context.Background(), "Some page")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readapidenied")
}

func TestSavePage(t *testing.T) {
	var sawEdit bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// csrf token fetch
			w.Write([]byte(`{"query":{"tokens":{"csrftoken":"abc+\\"}}}`))
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "edit", r.Form.Get("action"))
		assert.Equal(t, "Sandbox", r.Form.Get("title"))
		assert.Equal(t, "new text", r.Form.Get("text"))
		assert.Equal(t, "test edit", r.Form.Get("summary"))
		assert.Equal(t, "abc+\\", r.Form.Get("token"))
		assert.Equal(t, "1", r.Form.Get("notminor"))
		sawEdit = true
		w.Write([]byte(`{"edit":{"result":"Success"}}`))
	})

	require.NoError(t, c.SavePage(context.Background(), "Sandbox", "new text", "test edit"))
	assert.True(t, sawEdit)
}

func TestSavePageRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"query":{"tokens":{"csrftoken":"abc"}}}`))
			return
		}
		w.Write([]byte(`{"edit":{"result":"Failure"}}`))
	})

	err := c.SavePage(context.Background(), "Sandbox", "text", "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestIsFlowBoard(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{"flow board", "flow-board", true},
		{"plain wikitext", "wikitext", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"query":{"pages":[{"contentmodel":"` + tt.model + `"}]}}`))
			})

			flow, err := c.IsFlowBoard(context.Background(), "User talk:X")
			require.NoError(t, err)
			assert.Equal(t, tt.want, flow)
		})
	}
}

func TestLogin(t *testing.T) {
	step := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		step++
		if step == 1 {
			w.Write([]byte(`{"query":{"tokens":{"logintoken":"tok"}}}`))
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Bot", r.Form.Get("lgname"))
		assert.Equal(t, "secret", r.Form.Get("lgpassword"))
		assert.Equal(t, "tok", r.Form.Get("lgtoken"))
		w.Write([]byte(`{"login":{"result":"Success"}}`))
	})

	require.NoError(t, c.Login(context.Background()))
}

func TestLoginRejected(t *testing.T) {
	step := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		step++
		if step == 1 {
			w.Write([]byte(`{"query":{"tokens":{"logintoken":"tok"}}}`))
			return
		}
		w.Write([]byte(`{"login":{"result":"Failed","reason":"wrong password"}}`))
	})

	err := c.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong password")
}
