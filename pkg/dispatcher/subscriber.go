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

package dispatcher

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/abcxyz/pkg/logging"
)

// DeliveryProcessor re-attempts dispatch for an already-stored delivery
// id. *rawevent.Controller satisfies this via ProcessDelivery.
type DeliveryProcessor interface {
	ProcessDelivery(ctx context.Context, deliveryID string) error
}

// Subscriber pulls delivery ids scheduled by the Webhook Gateway (§4.1)
// off the dispatch topic and hands each to a DeliveryProcessor, the
// zero-added-delay path described in §4.1/§4.3 as an alternative to
// polling the raw event retry sweep.
type Subscriber struct {
	sub       *pubsub.Subscription
	processor DeliveryProcessor
	client    *pubsub.Client
}

// NewSubscriber creates a Subscriber pulling from subscriptionID.
func NewSubscriber(ctx context.Context, projectID, subscriptionID string, processor DeliveryProcessor, opts ...option.ClientOption) (*Subscriber, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &Subscriber{
		sub:       client.Subscription(subscriptionID),
		processor: processor,
		client:    client,
	}, nil
}

// Run blocks, pulling messages until ctx is canceled. Each message carries
// a delivery id as its raw payload, the same bytes the Webhook Gateway's
// Messenger publishes.
func (s *Subscriber) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	err := s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		deliveryID := string(m.Data)
		if err := s.processor.ProcessDelivery(ctx, deliveryID); err != nil {
			logger.WarnContext(ctx, "dispatch attempt failed, scheduled for retry", "delivery_id", deliveryID, "error", err)
		}
		m.Ack()
	})
	if err != nil {
		return fmt.Errorf("pubsub receive loop ended: %w", err)
	}
	return nil
}

// Shutdown releases the Subscriber's pubsub client.
func (s *Subscriber) Shutdown() error {
	s.client.Close()
	return nil
}
