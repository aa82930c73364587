package tunnel

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitForSession(t *testing.T) {
	t.Run("picks up the api address and stops at session establishment", func(t *testing.T) {
		output := strings.Join([]string{
			"plain text noise before logging starts",
			`{"addr":"127.0.0.1:4041","lvl":"info","msg":"starting web service","obj":"web"}`,
			`{"id":"44a534c2b867","lvl":"info","msg":"client session established","obj":"csess"}`,
			`{"lvl":"info","msg":"after, must not be consumed","obj":"tunnels"}`,
		}, "\n") + "\n"

		reader := bufio.NewReader(strings.NewReader(output))
		addr, err := waitForSession(reader)
		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1:4041", addr)

		// scanning stopped right after the session line
		next, err := readLogLine(reader)
		assert.NoError(t, err)
		assert.Equal(t, "tunnels", next.Obj)
	})

	t.Run("process exit before session is an error", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("garbage\n"))
		_, err := waitForSession(reader)
		assert.Error(t, err)
	})

	t.Run("session without api address is an error", func(t *testing.T) {
		output := `{"id":"x","lvl":"info","msg":"client session established","obj":"csess"}` + "\n"
		reader := bufio.NewReader(strings.NewReader(output))
		_, err := waitForSession(reader)
		assert.Error(t, err)
	})
}

func TestReadLogLine(t *testing.T) {
	output := "not json\nalso not json\n" + `{"obj":"web","msg":"hello"}` + "\n"
	reader := bufio.NewReader(strings.NewReader(output))

	line, err := readLogLine(reader)
	assert.NoError(t, err)
	assert.Equal(t, "web", line.Obj)
	assert.Equal(t, "hello", line.Msg)

	_, err = readLogLine(reader)
	assert.Error(t, err, "exhausted stream yields the read error")
}

func TestSelectPublicURL(t *testing.T) {
	t.Run("prefers https when both protocols exist", func(t *testing.T) {
		url, err := selectPublicURL([]tunnelInfo{
			{Proto: "http", PublicURL: "http://47bff724.ngrok.io"},
			{Proto: "https", PublicURL: "https://47bff724.ngrok.io"},
		})
		assert.NoError(t, err)
		assert.Equal(t, "https://47bff724.ngrok.io", url)
	})

	t.Run("falls back to the first tunnel", func(t *testing.T) {
		url, err := selectPublicURL([]tunnelInfo{
			{Proto: "http", PublicURL: "http://47bff724.ngrok.io"},
		})
		assert.NoError(t, err)
		assert.Equal(t, "http://47bff724.ngrok.io", url)
	})

	t.Run("no tunnels is an error", func(t *testing.T) {
		_, err := selectPublicURL(nil)
		assert.Error(t, err)
	})
}

func TestFetchTunnelURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tunnels", r.URL.Path)
		json.NewEncoder(w).Encode(tunnelList{Tunnels: []tunnelInfo{
			{Proto: "https", PublicURL: "https://example.ngrok.io"},
		}})
	}))
	defer srv.Close()

	n := NewNgrok(5000)
	url, err := n.fetchTunnelURL(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	assert.NoError(t, err)
	assert.Equal(t, "https://example.ngrok.io", url)
}

func TestNgrok_StopWithoutStart(t *testing.T) {
	n := NewNgrok(5000)
	assert.NoError(t, n.Stop())
}
