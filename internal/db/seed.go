package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo users,
// preferences, blocks, likes and the matches implied by reciprocity.
//
// Behavior:
//  1. Clears users, preferences, blocks, likes and matches.
//  2. Creates 20 users (10 male, 10 female) with hashed passwords and a
//     preference row each.
//  3. Issues ~150 likes with ~70% like probability; every 3rd pair gets the
//     reciprocal like and the corresponding match row.
//  4. Adds a couple of blocks so candidate filtering has something to hide.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"matches", "likes", "blocks", "user_preferences", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}

	log.Println("Cleared existing data")

	// --- Users (10 male, 10 female), each preferring the other gender ---
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		gender, wants := "male", "female"
		if i > 10 {
			gender, wants = "female", "male"
		}

		user := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Name:         fmt.Sprintf("Demo User %d", i),
			Birthdate:    time.Date(1990+i%10, time.Month(1+i%12), 1+i%28, 0, 0, 0, 0, time.UTC),
			Bio:          "Looking for something real.",
			AvatarURL:    fmt.Sprintf("https://cdn.amber.example/avatars/%s.png", uuid.NewString()),
			Gender:       gender,
			Active:       true,
			LastActiveAt: time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		pref := UserPreference{UserID: user.ID, AcceptedGenders: wants}
		if err := db.Create(&pref).Error; err != nil {
			return fmt.Errorf("failed to seed preference: %w", err)
		}
	}
	log.Println("Seeded 20 users with preferences.")

	var users []User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return fmt.Errorf("failed to reload users: %w", err)
	}

	likeUpsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"is_active": true, "unliked_at": nil}),
	}

	// --- Likes, with guaranteed reciprocity every 3rd pair ---
	counter := 0
	for _, actor := range users {
		for j := 0; j < 10; j++ {
			target := users[r.Intn(len(users))]
			if actor.ID == target.ID || actor.Gender == target.Gender {
				continue
			}

			if !(r.Intn(100) < 70) {
				continue
			}

			like := Like{FromUserID: actor.ID, ToUserID: target.ID, IsActive: true}
			if err := db.Clauses(likeUpsert).Create(&like).Error; err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}

			if counter%3 == 0 {
				recip := Like{FromUserID: target.ID, ToUserID: actor.ID, IsActive: true}
				if err := db.Clauses(likeUpsert).Create(&recip).Error; err != nil {
					return fmt.Errorf("failed to seed reciprocal like: %w", err)
				}

				lo, hi := NormalizePair(actor.ID, target.ID)
				match := Match{UserAID: lo, UserBID: hi, IsActive: true}
				if err := db.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_a_id"}, {Name: "user_b_id"}},
					DoUpdates: clause.Assignments(map[string]interface{}{"is_active": true}),
				}).Create(&match).Error; err != nil {
					return fmt.Errorf("failed to seed match: %w", err)
				}
			}
			counter++
		}
	}
	log.Printf("Seeded %d likes.", counter)

	// --- A couple of blocks for candidate filtering ---
	blocks := []Block{
		{BlockerID: users[0].ID, BlockedID: users[12].ID},
		{BlockerID: users[15].ID, BlockedID: users[3].ID},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&blocks).Error; err != nil {
		return fmt.Errorf("failed to seed blocks: %w", err)
	}

	return nil
}
