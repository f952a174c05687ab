package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves the endpoints the publisher uses and records what it saw.
type fakeGitHub struct {
	existingSHA    string // non-empty means main.py exists on the default branch
	lookupStatus   int    // overrides the contents lookup status when set
	failPullCreate bool

	createdRef string
	refSHA     string
	putSHA     string
	putBranch  string
	putContent string
	prHead     string
	prBase     string
	prTitle    string
	calls      []string
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) { f.calls = append(f.calls, r.Method+" "+r.URL.Path) }

	mux.HandleFunc("GET /repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{"name":"widgets","default_branch":"trunk"}`)
	})
	mux.HandleFunc("GET /repos/acme/widgets/branches/trunk", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, `{"name":"trunk","commit":{"sha":"abc123"}}`)
	})
	mux.HandleFunc("POST /repos/acme/widgets/git/refs", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.createdRef, f.refSHA = body.Ref, body.SHA
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"ref":"`+body.Ref+`","object":{"sha":"abc123"}}`)
	})
	mux.HandleFunc("GET /repos/acme/widgets/contents/main.py", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		assert.Equal(t, "trunk", r.URL.Query().Get("ref"))
		switch {
		case f.lookupStatus != 0:
			w.WriteHeader(f.lookupStatus)
			io.WriteString(w, `{"message":"boom"}`)
		case f.existingSHA == "":
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"Not Found"}`)
		default:
			io.WriteString(w, `{"type":"file","name":"main.py","path":"main.py","sha":"`+f.existingSHA+`"}`)
		}
	})
	mux.HandleFunc("PUT /repos/acme/widgets/contents/main.py", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
			Branch  string `json:"branch"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		decoded, err := base64.StdEncoding.DecodeString(body.Content)
		require.NoError(t, err)
		f.putContent, f.putSHA, f.putBranch = string(decoded), body.SHA, body.Branch
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"content":{"path":"main.py"},"commit":{"sha":"def456"}}`)
	})
	mux.HandleFunc("POST /repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if f.failPullCreate {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"message":"Validation Failed"}`)
			return
		}
		var body struct {
			Title string `json:"title"`
			Head  string `json:"head"`
			Base  string `json:"base"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.prTitle, f.prHead, f.prBase = body.Title, body.Head, body.Base
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"number":7,"html_url":"https://github.com/acme/widgets/pull/7"}`)
	})
	return mux
}

func newTestPublisher(t *testing.T, f *fakeGitHub) *GitHubPublisher {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	p, err := NewGitHubPublisher(GitHubConfig{Token: "ghp_test", Repo: "acme/widgets", BaseURL: srv.URL})
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return p
}

var testChange = Change{
	Path:          "main.py",
	Content:       "print(1 + 2)\n",
	CommitMessage: "Add generated main.py",
	Title:         "Generated: add two integers",
	Body:          "Validated in sandbox.",
}

func TestGitHubPublishCreatesFile(t *testing.T) {
	f := &fakeGitHub{}
	p := newTestPublisher(t, f)

	loc, err := p.Publish(context.Background(), testChange)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/widgets/pull/7", loc)
	assert.Equal(t, "refs/heads/feature-20240309140507", f.createdRef)
	assert.Equal(t, "abc123", f.refSHA)
	assert.Equal(t, "print(1 + 2)\n", f.putContent, "content must be published verbatim")
	assert.Equal(t, "feature-20240309140507", f.putBranch)
	assert.Empty(t, f.putSHA, "create must not send a sha")
	assert.Equal(t, "feature-20240309140507", f.prHead)
	assert.Equal(t, "trunk", f.prBase)
	assert.Equal(t, testChange.Title, f.prTitle)
}

func TestGitHubPublishUpdatesExistingFile(t *testing.T) {
	f := &fakeGitHub{existingSHA: "oldsha"}
	p := newTestPublisher(t, f)

	_, err := p.Publish(context.Background(), testChange)
	require.NoError(t, err)
	assert.Equal(t, "oldsha", f.putSHA)
}

func TestGitHubPublishFailures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeGitHub
		wantStep string
	}{
		{"lookup error is fatal", &fakeGitHub{lookupStatus: http.StatusForbidden}, "lookup-file"},
		{"pull request rejected", &fakeGitHub{failPullCreate: true}, "pull-request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPublisher(t, tt.fake)
			_, err := p.Publish(context.Background(), testChange)

			var perr *PublishError
			require.True(t, errors.As(err, &perr), "expected PublishError, got %v", err)
			assert.Equal(t, tt.wantStep, perr.Step)
			assert.Equal(t, "feature-20240309140507", perr.Branch)
		})
	}

	f := &fakeGitHub{lookupStatus: http.StatusForbidden}
	p := newTestPublisher(t, f)
	_, _ = p.Publish(context.Background(), testChange)
	for _, call := range f.calls {
		assert.NotContains(t, call, "PUT", "no write after a failed lookup")
		assert.NotContains(t, call, "pulls", "no pull request after a failed lookup")
	}
}

func TestNewGitHubPublisherValidatesRepo(t *testing.T) {
	for _, repo := range []string{"", "acme", "/widgets", "acme/"} {
		_, err := NewGitHubPublisher(GitHubConfig{Token: "t", Repo: repo})
		assert.Error(t, err, "repo %q", repo)
	}
}

func TestBranchName(t *testing.T) {
	name := BranchName("feature-", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "feature-20250102030405", name)
	assert.Regexp(t, regexp.MustCompile(`^feature-\d{14}$`), BranchName("feature-", time.Now()))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Publish(context.Background(), testChange)
	assert.ErrorIs(t, err, ErrPublishDisabled)

	cause := errors.New("no GitHub token configured")
	_, err = Disabled{Reason: cause}.Publish(context.Background(), testChange)
	assert.ErrorIs(t, err, ErrPublishDisabled)
	assert.ErrorIs(t, err, cause)
}
