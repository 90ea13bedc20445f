// Package dynamo implements storage.Backend on an Amazon DynamoDB table.
//
// All embedding tables may share one DynamoDB table: the embedding key is
// the partition key and the row key the sort key. Batches are split to the
// BatchWriteItem and BatchGetItem limits and unprocessed items are retried
// a bounded number of times.
package dynamo
