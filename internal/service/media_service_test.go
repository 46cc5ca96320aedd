package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestUpload_Image(t *testing.T) {
	putter := &fakePutter{}
	s := NewMediaService(putter, "media", "https://cdn.example.com")

	link, err := s.Upload(context.Background(), pngHeader)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://cdn.example.com/"))
	assert.True(t, strings.HasSuffix(link, ".png"))
	assert.Equal(t, "media", *putter.input.Bucket)
	assert.Equal(t, "image/png", *putter.input.ContentType)
	assert.Equal(t, pngHeader, putter.body)
}

func TestUpload_Rejects(t *testing.T) {
	s := NewMediaService(&fakePutter{}, "media", "https://cdn.example.com")

	_, err := s.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Upload(context.Background(), []byte("just some text"))
	assert.ErrorIs(t, err, ErrValidation)

	gif := []byte("GIF89a\x01\x00\x01\x00")
	_, err = s.Upload(context.Background(), gif)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpload_StoreError(t *testing.T) {
	s := NewMediaService(&fakePutter{err: errors.New("access denied")}, "media", "https://cdn.example.com")

	_, err := s.Upload(context.Background(), pngHeader)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}
