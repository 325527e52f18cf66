package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	logx "azkarbot/pkg/logx"
)

type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestS3StoreLoad(t *testing.T) {
	t.Parallel()

	t.Run("existing object", func(t *testing.T) {
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return *in.Bucket == "bot-state" && *in.Key == DefaultS3Key
		}), mock.Anything).Return(&s3.GetObjectOutput{
			Body: io.NopCloser(strings.NewReader(`{"groups":[-1002,-1001],"last_updated":"x"}`)),
		}, nil)

		st := newS3Store(client, S3Config{Bucket: "bot-state"}, logx.Nop())
		ids, err := st.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, []int64{-1002, -1001}, ids)
		client.AssertExpectations(t)
	})

	t.Run("missing object loads empty", func(t *testing.T) {
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &types.NoSuchKey{})

		st := newS3Store(client, S3Config{Bucket: "bot-state", Key: "groups.json"}, logx.Nop())
		ids, err := st.Load(context.Background())
		require.NoError(t, err)
		require.Empty(t, ids)
	})

	t.Run("other errors surface", func(t *testing.T) {
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("access denied"))

		st := newS3Store(client, S3Config{Bucket: "bot-state"}, logx.Nop())
		_, err := st.Load(context.Background())
		require.Error(t, err)
	})
}

func TestS3StoreSave(t *testing.T) {
	t.Parallel()

	client := new(MockS3Client)
	var body string
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		if b, _ := io.ReadAll(in.Body); len(b) > 0 {
			body = string(b)
		}
		return *in.Key == "groups.json" && *in.ContentType == "application/json"
	}), mock.Anything).Return(&s3.PutObjectOutput{}, nil)

	st := newS3Store(client, S3Config{Bucket: "bot-state", Key: "groups.json"}, logx.Nop())
	st.now = func() time.Time { return time.Date(2026, 10, 16, 0, 5, 0, 0, time.UTC) }

	require.NoError(t, st.Save(context.Background(), []int64{-2, -1}))
	require.Contains(t, body, `"groups": [`)
	require.Contains(t, body, `"last_updated": "2026-10-16T00:05:00Z"`)
	client.AssertExpectations(t)
}
