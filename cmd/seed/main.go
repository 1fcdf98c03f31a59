package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/waiting-room/internal/db"
	"github.com/vetdesk/waiting-room/internal/waitingroom"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clientIDs, err := seedClients(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed clients: %v", err)
	}
	petIDs, err := seedPets(context.Background(), pool, clientIDs)
	if err != nil {
		log.Fatalf("seed pets: %v", err)
	}
	if err := seedHistory(context.Background(), pool, petIDs); err != nil {
		log.Fatalf("seed history: %v", err)
	}

	log.Println("seed complete")
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO clients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("clients seeded")
	return ids, nil
}

type seededPet struct {
	id       uuid.UUID
	clientID uuid.UUID
}

func seedPets(ctx context.Context, pool *pgxpool.Pool, clientIDs []uuid.UUID) ([]seededPet, error) {
	log.Printf("seeding pets for %d clients", len(clientIDs))

	species := []string{"dog", "cat", "rabbit", "parrot", "hamster", "guinea pig", "ferret"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var pets []seededPet
	for _, clientID := range clientIDs {
		// One to three pets per client.
		for n := gofakeit.Number(1, 3); n > 0; n-- {
			id := uuid.New()
			name := gofakeit.PetName()
			sp := species[gofakeit.Number(0, len(species)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO pets (id, client_id, name, species, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, clientID, name, sp)
			if err != nil {
				return nil, err
			}
			pets = append(pets, seededPet{id: id, clientID: clientID})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Printf("pets seeded: %d", len(pets))
	return pets, nil
}

// seedHistory writes a week of completed visits so the average-wait metric
// has data to chew on.
func seedHistory(ctx context.Context, pool *pgxpool.Pool, pets []seededPet) error {
	log.Println("seeding visit history")

	reasons := []string{
		"annual checkup", "vaccination", "limping", "skin irritation",
		"dental cleaning", "not eating", "ear infection", "follow-up",
	}
	priorities := []waitingroom.Priority{
		waitingroom.PriorityNormal, waitingroom.PriorityNormal,
		waitingroom.PriorityNormal, waitingroom.PriorityUrgent,
		waitingroom.PriorityEmergency,
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	count := 0
	for day := 1; day <= 7; day++ {
		dayStart := time.Now().UTC().AddDate(0, 0, -day).Truncate(24 * time.Hour).Add(8 * time.Hour)

		for i := 0; i < gofakeit.Number(20, 40); i++ {
			pet := pets[gofakeit.Number(0, len(pets)-1)]
			arrival := dayStart.Add(time.Duration(gofakeit.Number(0, 8*60)) * time.Minute)
			waited := time.Duration(gofakeit.Number(2, 90)) * time.Minute
			consultStart := arrival.Add(waited)
			completed := consultStart.Add(time.Duration(gofakeit.Number(5, 45)) * time.Minute)

			_, err := tx.Exec(ctx, `
				INSERT INTO waiting_entries (
					id, client_id, pet_id, reason_for_visit, priority, status,
					arrival_time, consultation_started_at, completed_at, notes,
					created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '', now(), now())
			`, uuid.New(), pet.clientID, pet.id,
				reasons[gofakeit.Number(0, len(reasons)-1)],
				priorities[gofakeit.Number(0, len(priorities)-1)],
				waitingroom.StatusCompleted, arrival, consultStart, completed)
			if err != nil {
				return err
			}
			count++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("visit history seeded: %d entries", count)
	return nil
}
