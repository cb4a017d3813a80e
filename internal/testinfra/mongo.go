// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// MongoImage is the store image used by integration tests.
	MongoImage = "mongo:7.0"

	// MongoRootUser and MongoRootPassword are the credentials the
	// container is seeded with.
	MongoRootUser     = "root"
	MongoRootPassword = "integration-secret"
)

// MongoContainer is a running document store container plus the
// connection coordinates tests need.
type MongoContainer struct {
	Container testcontainers.Container
	Host      string
	Port      int
}

// NewMongoContainer starts a disposable MongoDB container with root
// credentials and waits until it accepts connections.
func NewMongoContainer(ctx context.Context) (*MongoContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        MongoImage,
		ExposedPorts: []string{"27017/tcp"},
		Env: map[string]string{
			"MONGO_INITDB_ROOT_USERNAME": MongoRootUser,
			"MONGO_INITDB_ROOT_PASSWORD": MongoRootPassword,
		},
		WaitingFor: wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start mongo container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("resolve container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("resolve mapped port: %w", err)
	}

	return &MongoContainer{
		Container: container,
		Host:      host,
		Port:      mapped.Int(),
	}, nil
}
