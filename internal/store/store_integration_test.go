// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/store"
)

var _ = Describe("Agent directory", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
		repo      *store.AgentRepository
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("simscript"),
			postgres.WithUsername("simscript"),
			postgres.WithPassword("simscript"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("reports an unmigrated schema as unavailable", func() {
		var err error
		pool, err = store.Open(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		repo = store.NewAgentRepository(pool)

		_, err = repo.LookupAgent(ctx, ulid.Make())
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(directory.ErrNotFound))
	})

	It("migrates up, steps back and forward", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		Expect(migrator.Up()).To(Succeed())
		latest, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(latest).To(BeNumerically(">", 0))

		Expect(migrator.Steps(-1)).To(Succeed())
		v, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(latest - 1))

		Expect(migrator.Up()).To(Succeed())
		pending, err := migrator.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})

	It("stores and finds agents", func() {
		bob := directory.Account{
			ID:          ulid.Make(),
			Username:    "bob.resident",
			DisplayName: "Bob",
			Born:        time.Date(2007, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		Expect(repo.CreateAgent(ctx, bob)).To(Succeed())
		Expect(repo.CreateAgent(ctx, bob)).To(MatchError(store.ErrAgentExists))

		got, err := repo.LookupAgent(ctx, bob.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Username).To(Equal("bob.resident"))
		Expect(got.Born.Equal(bob.Born)).To(BeTrue())
		Expect(got.Online).To(BeFalse())

		Expect(repo.SetOnline(ctx, bob.ID, true)).To(Succeed())
		n, err := repo.CountOnline(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		_, err = repo.LookupAgent(ctx, ulid.Make())
		Expect(err).To(MatchError(directory.ErrNotFound))
	})
})
