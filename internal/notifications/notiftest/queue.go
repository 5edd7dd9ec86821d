package notiftest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Queue is an in-memory SQS stand-in. Received messages stay in flight
// until deleted or returned with Redeliver; receives never block.
type Queue struct {
	mu       sync.Mutex
	seq      int
	visible  []sqstypes.Message
	inFlight map[string]sqstypes.Message
	receives map[string]int

	// ReceiveErr, when set, is returned by the next ReceiveMessage call.
	ReceiveErr error
	// SendErr, when set, is returned by SendMessage.
	SendErr error
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		inFlight: make(map[string]sqstypes.Message),
		receives: make(map[string]int),
	}
}

func (q *Queue) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.SendErr != nil {
		return nil, q.SendErr
	}
	id := q.push(aws.ToString(params.MessageBody), params.MessageAttributes)
	return &sqs.SendMessageOutput{MessageId: aws.String(id)}, nil
}

// Push enqueues a raw body and returns its message id.
func (q *Queue) Push(body string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.push(body, nil)
}

func (q *Queue) push(body string, attrs map[string]sqstypes.MessageAttributeValue) string {
	q.seq++
	id := fmt.Sprintf("msg-%d", q.seq)
	q.visible = append(q.visible, sqstypes.Message{
		MessageId:         aws.String(id),
		ReceiptHandle:     aws.String("rh-" + id),
		Body:              aws.String(body),
		MessageAttributes: attrs,
		Attributes: map[string]string{
			string(sqstypes.MessageSystemAttributeNameSentTimestamp): strconv.FormatInt(time.Now().UnixMilli(), 10),
		},
	})
	return id
}

func (q *Queue) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ReceiveErr; err != nil {
		q.ReceiveErr = nil
		return nil, err
	}

	n := int(params.MaxNumberOfMessages)
	if n <= 0 {
		n = 1
	}
	if n > len(q.visible) {
		n = len(q.visible)
	}
	batch := make([]sqstypes.Message, n)
	copy(batch, q.visible[:n])
	q.visible = q.visible[n:]
	for i, m := range batch {
		id := aws.ToString(m.MessageId)
		q.receives[id]++
		batch[i].Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)] = strconv.Itoa(q.receives[id])
		q.inFlight[aws.ToString(m.ReceiptHandle)] = batch[i]
	}
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (q *Queue) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	handle := aws.ToString(params.ReceiptHandle)
	if _, ok := q.inFlight[handle]; !ok {
		return nil, fmt.Errorf("receipt handle %s is not in flight", handle)
	}
	delete(q.inFlight, handle)
	return &sqs.DeleteMessageOutput{}, nil
}

// Redeliver makes every in-flight message visible again, as if its
// visibility timeout had expired.
func (q *Queue) Redeliver() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for handle, m := range q.inFlight {
		q.visible = append(q.visible, m)
		delete(q.inFlight, handle)
	}
}

// Visible returns the number of messages waiting to be received.
func (q *Queue) Visible() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visible)
}

// Len returns the number of messages not yet deleted.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visible) + len(q.inFlight)
}

// Bodies returns the bodies of every undeleted message.
func (q *Queue) Bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.visible)+len(q.inFlight))
	for _, m := range q.visible {
		out = append(out, aws.ToString(m.Body))
	}
	for _, m := range q.inFlight {
		out = append(out, aws.ToString(m.Body))
	}
	return out
}
