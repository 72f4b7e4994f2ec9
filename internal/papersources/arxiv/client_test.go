package arxiv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/papersources"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">1</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2309.08600v2</id>
    <updated>2023-09-20T10:00:00Z</updated>
    <published>2023-09-15T17:59:59Z</published>
    <title>Sparse Autoencoders Find Highly
      Interpretable Features</title>
    <summary>  We study   superposition. </summary>
    <author><name>Hoagy Cunningham</name></author>
    <author><name> Aidan Ewart </name></author>
    <author><name></name></author>
    <arxiv:doi>10.1234/example</arxiv:doi>
    <arxiv:comment>14 pages,
      6 figures</arxiv:comment>
    <arxiv:journal_ref>ICLR 2024</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/2309.08600v2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2309.08600v2" rel="related" type="application/pdf"/>
    <arxiv:primary_category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

const errorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_1234</id>
    <title>Error</title>
    <summary>incorrect id format for 1234</summary>
  </entry>
</feed>`

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		RateLimit: 1000,
		BurstSize: 10,
	})
	return NewWithHTTPClient(Config{BaseURL: server.URL}, httpClient)
}

func TestClient_GetMetadata(t *testing.T) {
	var gotPath, gotIDList string
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIDList = r.URL.Query().Get("id_list")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	})

	meta, err := client.GetMetadata(context.Background(), "2309.08600")
	require.NoError(t, err)

	assert.Equal(t, "/query", gotPath)
	assert.Equal(t, "2309.08600", gotIDList)

	assert.Equal(t, "2309.08600", meta.ID)
	assert.Equal(t, "v2", meta.Version)
	assert.Equal(t, "Sparse Autoencoders Find Highly Interpretable Features", meta.Title)
	assert.Equal(t, []string{"Hoagy Cunningham", "Aidan Ewart"}, meta.Authors)
	assert.Equal(t, "We study superposition.", meta.Abstract)
	assert.Equal(t, time.Date(2023, 9, 15, 17, 59, 59, 0, time.UTC), meta.Published)
	assert.Equal(t, "https://arxiv.org/abs/2309.08600", meta.CanonicalURL)
	assert.Equal(t, "http://arxiv.org/pdf/2309.08600v2", meta.PDFURL)
	assert.Equal(t, "10.1234/example", meta.DOI)
	assert.Equal(t, "14 pages, 6 figures", meta.Comment)
	assert.Equal(t, "ICLR 2024", meta.JournalRef)
	assert.Equal(t, "cs.LG", meta.PrimaryCategory)
	assert.Equal(t, []string{"cs.LG", "cs.AI"}, meta.Categories)
}

func TestClient_GetMetadata_NotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty feed", `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`},
		{"error entry", errorFeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetMetadata(context.Background(), "9999.99999")
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrNotFound))
		})
	}
}

func TestClient_GetMetadata_ServerError(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetMetadata(context.Background(), "2309.08600")

	var apiErr *domain.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.True(t, apiErr.IsTransient())
}

func TestClient_GetMetadata_MalformedFeed(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<feed><entry>"))
	})

	_, err := client.GetMetadata(context.Background(), "2309.08600")

	var apiErr *domain.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsTransient())
}

func TestExtractArXivID(t *testing.T) {
	tests := []struct {
		in, id, version string
	}{
		{"http://arxiv.org/abs/2301.12345v1", "2301.12345", "v1"},
		{"http://arxiv.org/abs/2301.12345", "2301.12345", ""},
		{"http://arxiv.org/abs/hep-th/9901001v2", "hep-th/9901001", "v2"},
		{"http://example.com/2301.12345", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, version := extractArXivID(tt.in)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.version, version)
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultBaseURL, c.config.BaseURL)
	assert.Equal(t, DefaultTimeout, c.config.Timeout)
	assert.Equal(t, DefaultRateLimit, c.config.RateLimit)
}
