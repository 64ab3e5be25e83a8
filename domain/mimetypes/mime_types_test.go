package mimetypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMedia(t *testing.T) {
	req := require.New(t)

	req.True(IsMedia("image/png"))
	req.True(IsMedia("video/mp4"))
	req.True(IsMedia("audio/ogg; codecs=opus"))

	req.False(IsMedia("application/pdf"))
	req.False(IsMedia("text/plain; charset=utf-8"))
	req.False(IsMedia(""))
	req.False(IsMedia("not a mime"))
}

func TestMatches(t *testing.T) {
	req := require.New(t)

	mt, ok := Matches("image/png", ImagePNG)
	req.True(ok)
	req.Equal(ImagePNG, mt)

	_, ok = Matches("image/jpeg", ImagePNG)
	req.False(ok)

	mt, ok = Matches("", ImagePNG)
	req.False(ok)
	req.Equal(Unknown, mt)
}
