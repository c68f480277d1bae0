package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/memvec/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockDDBClient mocks the DynamoDB operations used by DDBCommitStore.
type MockDDBClient struct {
	mock.Mock
}

func (m *MockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.PutItemOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.QueryOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDDBCommitStore_CurrentRoundTrip(t *testing.T) {
	inner := blobstore.NewMemoryStore()
	ddbClient := new(MockDDBClient)
	store := NewDDBCommitStore(inner, ddbClient, "memvec-commits", "s3://bucket/collection")

	// Empty table: CURRENT does not exist yet.
	ddbClient.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{}, nil).Once()
	_, err := store.Get(context.Background(), CurrentManifestKey)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Commit version 1.
	ddbClient.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{}, nil).Once()
	ddbClient.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
		v := input.Item["version"].(*ddbtypes.AttributeValueMemberN)
		return v.Value == "1"
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()
	err = store.Put(context.Background(), CurrentManifestKey, []byte("manifests/000001"))
	assert.NoError(t, err)

	// Read back.
	ddbClient.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{
			Items: []map[string]ddbtypes.AttributeValue{{
				"version":       &ddbtypes.AttributeValueMemberN{Value: "1"},
				"manifest_path": &ddbtypes.AttributeValueMemberS{Value: "manifests/000001"},
			}},
		}, nil).Once()
	data, err := store.Get(context.Background(), CurrentManifestKey)
	assert.NoError(t, err)
	assert.Equal(t, "manifests/000001", string(data))

	ddbClient.AssertExpectations(t)
}

func TestDDBCommitStore_ConcurrentModification(t *testing.T) {
	inner := blobstore.NewMemoryStore()
	ddbClient := new(MockDDBClient)
	store := NewDDBCommitStore(inner, ddbClient, "memvec-commits", "s3://bucket/collection")

	ddbClient.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{}, nil).Once()
	ddbClient.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &ddbtypes.ConditionalCheckFailedException{}).Once()

	err := store.Put(context.Background(), CurrentManifestKey, []byte("manifests/000001"))
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestDDBCommitStore_DelegatesNonCurrent(t *testing.T) {
	inner := blobstore.NewMemoryStore()
	ddbClient := new(MockDDBClient)
	store := NewDDBCommitStore(inner, ddbClient, "memvec-commits", "s3://bucket/collection")

	err := store.Put(context.Background(), "chunks/01", []byte("data"))
	assert.NoError(t, err)

	data, err := store.Get(context.Background(), "chunks/01")
	assert.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	// No DynamoDB calls for regular blobs.
	ddbClient.AssertNotCalled(t, "Query")
	ddbClient.AssertNotCalled(t, "PutItem")
}
