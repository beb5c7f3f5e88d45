package request

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIsDeterministic(t *testing.T) {
	first, err := Resolve("/assets/app.js?v=1", "")
	require.NoError(t, err)
	second, err := Resolve("/assets/app.js?v=1", "")
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Len(t, first.Key.String(), 40)
	assert.Equal(t, "application/javascript;charset=utf-8", first.MIMEType)
}

func TestResolveQueryBustsKey(t *testing.T) {
	v1, err := Resolve("/assets/app.css?v=1", "")
	require.NoError(t, err)
	v2, err := Resolve("/assets/app.css?v=2", "")
	require.NoError(t, err)
	bare, err := Resolve("/assets/app.css", "")
	require.NoError(t, err)

	assert.NotEqual(t, v1.Key, v2.Key)
	assert.NotEqual(t, v1.Key, bare.Key)
	assert.Equal(t, "v=2", v2.Query)
	assert.Equal(t, "/assets/app.css", v2.Path)
}

func TestResolveStripsPrefixOnceFromStart(t *testing.T) {
	req, err := Resolve("/cdn/cdn/logo.png", "/cdn")
	require.NoError(t, err)
	assert.Equal(t, "/cdn/logo.png", req.Normalized)

	mid, err := Resolve("/static/cdn/logo.png", "/cdn")
	require.NoError(t, err)
	assert.Equal(t, "/static/cdn/logo.png", mid.Normalized)

	plain, err := Resolve("/logo.png", "")
	require.NoError(t, err)
	stripped, err := Resolve("/cdn/logo.png", "/cdn")
	require.NoError(t, err)
	assert.Equal(t, plain.Key, stripped.Key)
}

func TestResolveRejections(t *testing.T) {
	testCases := []struct {
		name   string
		uri    string
		reason Reason
		status int
	}{
		{"directory", "/assets/", ReasonForbidden, http.StatusForbidden},
		{"api", "/api/users?id=1", ReasonForbidden, http.StatusForbidden},
		{"trailing dot", "/file.", ReasonForbidden, http.StatusForbidden},
		{"dot in dir only", "/v1.2/file", ReasonForbidden, http.StatusForbidden},
		{"bmp", "/image.bmp", ReasonUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{"php", "/index.php?x=.png", ReasonUnsupportedMediaType, http.StatusUnsupportedMediaType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.uri, "")
			var rejectErr *RejectError
			require.True(t, errors.As(err, &rejectErr), "expected RejectError, got %v", err)
			assert.Equal(t, tc.reason, rejectErr.Reason)
			assert.Equal(t, tc.status, rejectErr.StatusCode())
		})
	}
}

func TestResolveSupportedTable(t *testing.T) {
	for _, ext := range []string{"gif", "jpg", "png", "ico", "js", "css", "xml", "json", "txt", "otf", "woff"} {
		req, err := Resolve("/file."+ext, "")
		require.NoError(t, err, ext)
		assert.NotEmpty(t, req.MIMEType, ext)
		assert.Equal(t, req.Key.String()+"."+ext, req.FileName())
	}
}

func TestResolveExtensionCaseInsensitive(t *testing.T) {
	req, err := Resolve("/Logo.PNG", "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", req.MIMEType)
	assert.Equal(t, req.Key.String()+".png", req.FileName())

	lower, err := Resolve("/Logo.png", "")
	require.NoError(t, err)
	assert.NotEqual(t, lower.Key, req.Key)
}
