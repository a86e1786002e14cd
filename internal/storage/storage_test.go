package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filePath string
		wantType string
	}{
		{"video.mp4", "video/mp4"},
		{"VIDEO.MP4", "video/mp4"},
		{"video.mov", "video/quicktime"},
		{"video.mkv", "video/x-matroska"},
		{"video.webm", "video/webm"},
		{"subs.srt", "application/x-subrip"},
		{"narration.mp3", "audio/mpeg"},
		{"unknown.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filePath, func(t *testing.T) {
			assert.Equal(t, tt.wantType, getContentType(tt.filePath))
		})
	}
}

func TestParseObjectRef(t *testing.T) {
	tests := []struct {
		ref     string
		want    ObjectRef
		wantErr bool
	}{
		{ref: "s3://videos/jobs/42/source.mp4", want: ObjectRef{Bucket: "videos", Key: "jobs/42/source.mp4"}},
		{ref: "S3://videos/a.mp4", want: ObjectRef{Bucket: "videos", Key: "a.mp4"}},
		{ref: "s3://videos/", wantErr: true},
		{ref: "s3:///key", wantErr: true},
		{ref: "https://example.com/a.mp4", wantErr: true},
		{ref: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseObjectRef(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsObjectRef(tt.ref))
		})
	}
}

func TestObjectRefString(t *testing.T) {
	assert.Equal(t, "s3://results/j1/out.mp4", ObjectRef{Bucket: "results", Key: "j1/out.mp4"}.String())
	assert.False(t, IsObjectRef("https://example.com/a.mp4"))
}
