package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoRef(t *testing.T) {
	tests := []struct {
		ref       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{ref: "golang/go", wantOwner: "golang", wantRepo: "go"},
		{ref: "https://github.com/golang/go", wantOwner: "golang", wantRepo: "go"},
		{ref: "https://github.com/golang/go/", wantOwner: "golang", wantRepo: "go"},
		{ref: "golang/go.git", wantOwner: "golang", wantRepo: "go"},
		{ref: "  spf13/cobra  ", wantOwner: "spf13", wantRepo: "cobra"},
		{ref: "golang", wantErr: true},
		{ref: "", wantErr: true},
		{ref: "/", wantErr: true},
	}
	for _, tt := range tests {
		owner, repo, err := ParseRepoRef(tt.ref)
		if tt.wantErr {
			assert.Error(t, err, tt.ref)
			continue
		}
		require.NoError(t, err, tt.ref)
		assert.Equal(t, tt.wantOwner, owner, tt.ref)
		assert.Equal(t, tt.wantRepo, repo, tt.ref)
	}
}

func TestDocExtensions(t *testing.T) {
	assert.True(t, docExtensions[".md"])
	assert.True(t, docExtensions[".txt"])
	assert.False(t, docExtensions[".go"])
	assert.False(t, docExtensions[".png"])
}
