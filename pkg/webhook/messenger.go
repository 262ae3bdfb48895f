// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Messenger schedules the Event Dispatcher with zero added delay after a
// raw event is durably recorded (§4.1's scheduling contract).
type Messenger interface {
	Send(ctx context.Context, payload []byte) error
	Shutdown() error
}

// pubsubMessenger is the production Messenger, grounded on the same
// Google Cloud Pub/Sub client used elsewhere in this module.
type pubsubMessenger struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubMessenger creates a Messenger that publishes to topicID.
func NewPubSubMessenger(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (Messenger, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &pubsubMessenger{client: client, topic: client.Topic(topicID)}, nil
}

func (m *pubsubMessenger) Send(ctx context.Context, payload []byte) error {
	result := m.topic.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (m *pubsubMessenger) Shutdown() error {
	m.topic.Stop()
	m.client.Close()
	return nil
}
