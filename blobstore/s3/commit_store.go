package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/vectora/blobstore"
)

// PointerName is the blob name element the commit store intercepts. A blob
// named "<dataset>/LATEST" holds the name of the dataset's newest snapshot.
const PointerName = "LATEST"

// ErrConcurrentCommit is returned when two writers race to advance the same
// snapshot pointer.
var ErrConcurrentCommit = errors.New("concurrent snapshot commit detected")

// CommitStore wraps an S3 Store and routes snapshot-pointer updates through
// DynamoDB conditional writes. S3 has no compare-and-swap, so multiple
// writers advancing a dataset's LATEST pointer need external coordination.
//
// Table schema:
//   - Partition key: scope (string), "<baseURI>/<dataset>"
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name vectora-commits \
//	  --attribute-definitions AttributeName=scope,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=scope,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	inner     *Store
	ddb       DynamoDBClient
	tableName string
	baseURI   string
}

// NewCommitStore creates a commit store on top of an S3 store. baseURI
// scopes DynamoDB items, typically "s3://bucket/prefix".
func NewCommitStore(inner *Store, ddb DynamoDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		inner:     inner,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

func isPointer(name string) bool {
	return path.Base(name) == PointerName
}

func (s *CommitStore) scope(name string) string {
	return s.baseURI + "/" + path.Dir(name)
}

// Open opens a blob. Pointer reads resolve through DynamoDB.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if !isPointer(name) {
		return s.inner.Open(ctx, name)
	}

	version, snapshotPath, err := s.latestVersion(ctx, s.scope(name))
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return &pointerBlob{content: []byte(snapshotPath)}, nil
}

// Put writes a blob. Pointer writes go through a DynamoDB conditional put.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if !isPointer(name) {
		return s.inner.Put(ctx, name, data)
	}
	return s.commit(ctx, s.scope(name), string(data))
}

// Create creates a writable blob. Pointers are small; use Put for them.
func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

// Delete removes a blob from S3. Pointer history in DynamoDB is kept.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List lists blobs with the given prefix.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CommitStore) latestVersion(ctx context.Context, scope string) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("#scope = :scope"),
		// "scope" is a DynamoDB reserved word.
		ExpressionAttributeNames: map[string]string{"#scope": "scope"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":scope": &types.AttributeValueMemberS{Value: scope},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in commit table")
	}
	pathAttr, ok := item["snapshot_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot_path attribute in commit table")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}

	return version, pathAttr.Value, nil
}

func (s *CommitStore) commit(ctx context.Context, scope, snapshotPath string) error {
	currentVersion, _, err := s.latestVersion(ctx, scope)
	if err != nil {
		return err
	}

	// Succeeds only if nobody else claimed this version first.
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"scope":         &types.AttributeValueMemberS{Value: scope},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(currentVersion+1, 10)},
			"snapshot_path": &types.AttributeValueMemberS{Value: snapshotPath},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("commit snapshot pointer: %w", err)
	}

	return nil
}

// pointerBlob serves the resolved pointer content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
