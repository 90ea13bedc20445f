package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/embedstore/compress"
	"github.com/hupe1980/embedstore/storage"
)

const (
	// MaxWriteBatch is the BatchWriteItem request limit.
	MaxWriteBatch = 25
	// MaxReadBatch is the BatchGetItem request limit.
	MaxReadBatch = 100

	attrTable = "embedding_key"
	attrKey   = "row_key"
	attrValue = "value"
)

// ErrUnprocessed is returned when DynamoDB keeps returning unprocessed
// items after all retry attempts.
var ErrUnprocessed = errors.New("dynamo: unprocessed items remain")

// Client is the subset of the DynamoDB API the backend uses.
type Client interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Option configures a DynamoDB backend.
type Option func(*options)

type options struct {
	embeddingKey int32
	compression  compress.Kind
	maxAttempts  int
	configOpts   []func(*config.LoadOptions) error
}

// WithEmbeddingKey selects the partition rows are stored under.
func WithEmbeddingKey(key int32) Option {
	return func(o *options) { o.embeddingKey = key }
}

// WithCompression compresses each row value with the given codec.
func WithCompression(kind compress.Kind) Option {
	return func(o *options) { o.compression = kind }
}

// WithMaxAttempts bounds how often unprocessed items are resubmitted. Default 5.
func WithMaxAttempts(n int) Option {
	return func(o *options) { o.maxAttempts = n }
}

// WithConfigOptions passes load options to config.LoadDefaultConfig in New.
func WithConfigOptions(fns ...func(*config.LoadOptions) error) Option {
	return func(o *options) { o.configOpts = append(o.configOpts, fns...) }
}

// Backend stores rows in a DynamoDB table keyed by
// (embedding_key N, row_key N). The value attribute holds the row bytes.
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name embeddings \
//	  --attribute-definitions AttributeName=embedding_key,AttributeType=N AttributeName=row_key,AttributeType=N \
//	  --key-schema AttributeName=embedding_key,KeyType=HASH AttributeName=row_key,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Backend struct {
	client    Client
	table     string
	partition string
	rowSize   int
	opts      options
}

// New creates a backend using the default AWS configuration chain.
func New(ctx context.Context, table string, rowSize int, optFns ...Option) (*Backend, error) {
	var o options
	for _, fn := range optFns {
		fn(&o)
	}

	cfg, err := config.LoadDefaultConfig(ctx, o.configOpts...)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}

	return NewWithClient(dynamodb.NewFromConfig(cfg), table, rowSize, optFns...)
}

// NewWithClient creates a backend on an existing client.
func NewWithClient(client Client, table string, rowSize int, optFns ...Option) (*Backend, error) {
	if rowSize <= 0 {
		return nil, fmt.Errorf("%w: row size %d", storage.ErrBatchShape, rowSize)
	}

	o := options{maxAttempts: 5}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = 5
	}

	return &Backend{
		client:    client,
		table:     table,
		partition: strconv.FormatInt(int64(o.embeddingKey), 10),
		rowSize:   rowSize,
		opts:      o,
	}, nil
}

func (b *Backend) key(k uint64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrTable: &types.AttributeValueMemberN{Value: b.partition},
		attrKey:   &types.AttributeValueMemberN{Value: strconv.FormatUint(k, 10)},
	}
}

func rowKey(item map[string]types.AttributeValue) (uint64, error) {
	attr, ok := item[attrKey].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s attribute", storage.ErrCorrupt, attrKey)
	}
	return strconv.ParseUint(attr.Value, 10, 64)
}

// Write stores rows in chunks of MaxWriteBatch. DynamoDB rejects a batch
// naming the same key twice, so only the last row of a duplicated key is sent.
func (b *Backend) Write(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}

	idx := storage.LastIndices(keys)
	for start := 0; start < len(idx); start += MaxWriteBatch {
		end := min(start+MaxWriteBatch, len(idx))

		reqs := make([]types.WriteRequest, 0, end-start)
		for _, i := range idx[start:end] {
			frame, err := compress.Encode(b.opts.compression, storage.Row(values, b.rowSize, i))
			if err != nil {
				return err
			}
			item := b.key(keys[i])
			item[attrValue] = &types.AttributeValueMemberB{Value: frame}
			reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		if err := b.batchWrite(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes rows. Absent keys are ignored by DynamoDB.
func (b *Backend) Delete(ctx context.Context, keys []uint64) error {
	idx := storage.LastIndices(keys)
	for start := 0; start < len(idx); start += MaxWriteBatch {
		end := min(start+MaxWriteBatch, len(idx))

		reqs := make([]types.WriteRequest, 0, end-start)
		for _, i := range idx[start:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: b.key(keys[i])}})
		}

		if err := b.batchWrite(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{b.table: reqs}

	for range b.opts.maxAttempts {
		out, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("dynamo: batch write: %w", err)
		}
		if len(out.UnprocessedItems[b.table]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
	}

	return fmt.Errorf("%w: %d writes", ErrUnprocessed, len(pending[b.table]))
}

// Read fetches rows in chunks of MaxReadBatch.
func (b *Backend) Read(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}

	positions := make(map[uint64][]int, len(keys))
	unique := make([]uint64, 0, len(keys))
	for i, k := range keys {
		if _, ok := positions[k]; !ok {
			unique = append(unique, k)
		}
		positions[k] = append(positions[k], i)
	}

	for start := 0; start < len(unique); start += MaxReadBatch {
		chunk := unique[start:min(start+MaxReadBatch, len(unique))]

		found, err := b.batchGet(ctx, chunk)
		if err != nil {
			return err
		}

		for _, k := range chunk {
			frame, ok := found[k]
			if !ok {
				return &storage.NotFoundError{Key: k}
			}
			pos := positions[k]
			first := storage.Row(values, b.rowSize, pos[0])
			if err := compress.Decode(b.opts.compression, frame, first); err != nil {
				return fmt.Errorf("%w: key %d: %v", storage.ErrCorrupt, k, err)
			}
			for _, p := range pos[1:] {
				copy(storage.Row(values, b.rowSize, p), first)
			}
		}
	}
	return nil
}

func (b *Backend) batchGet(ctx context.Context, keys []uint64) (map[uint64][]byte, error) {
	ks := make([]map[string]types.AttributeValue, len(keys))
	for i, k := range keys {
		ks[i] = b.key(k)
	}

	found := make(map[uint64][]byte, len(keys))
	pending := map[string]types.KeysAndAttributes{
		b.table: {Keys: ks, ConsistentRead: aws.Bool(true)},
	}

	for range b.opts.maxAttempts {
		out, err := b.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		if err != nil {
			return nil, fmt.Errorf("dynamo: batch get: %w", err)
		}

		for _, item := range out.Responses[b.table] {
			k, err := rowKey(item)
			if err != nil {
				return nil, err
			}
			v, ok := item[attrValue].(*types.AttributeValueMemberB)
			if !ok {
				return nil, fmt.Errorf("%w: key %d: missing %s attribute", storage.ErrCorrupt, k, attrValue)
			}
			found[k] = v.Value
		}

		if len(out.UnprocessedKeys[b.table].Keys) == 0 {
			return found, nil
		}
		pending = out.UnprocessedKeys
	}

	return nil, fmt.Errorf("%w: %d reads", ErrUnprocessed, len(pending[b.table].Keys))
}

// Len counts the rows of the partition.
func (b *Backend) Len(ctx context.Context) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(b.table),
		KeyConditionExpression: aws.String("embedding_key = :k"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberN{Value: b.partition},
		},
		Select: types.SelectCount,
	}

	n := 0
	for {
		out, err := b.client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("dynamo: query: %w", err)
		}
		n += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return n, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Close is a no-op; the client holds no resources.
func (b *Backend) Close() error { return nil }
