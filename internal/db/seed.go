package db

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/devmatch/internal/logger"
)

// CurrentUserID is the id of the demo account that owns the seeded session.
const CurrentUserID = "currentUser"

// DemoPassword is shared by every seeded account.
const DemoPassword = "password123"

// DemoUsers returns the seeded accounts without password hashes.
func DemoUsers() []User {
	return []User{
		{ID: CurrentUserID, Email: "john.doe@example.com", FirstName: "John", LastName: "Doe"},
		{ID: "1", Email: "alice.johnson@example.com", FirstName: "Alice", LastName: "Johnson"},
		{ID: "2", Email: "bob.smith@example.com", FirstName: "Bob", LastName: "Smith"},
		{ID: "3", Email: "carol.white@example.com", FirstName: "Carol", LastName: "White"},
	}
}

// DemoProfiles returns the developer catalog the deck is drawn from.
func DemoProfiles() []Profile {
	return []Profile{
		{
			ID: "1", Name: "Alice Johnson", Email: "alice.johnson@example.com", Location: "San Francisco, CA",
			Bio:    "Full Stack Developer with 5 years of experience in React and Node.js. Passionate about building scalable web applications and mentoring junior developers.",
			Skills: []string{"React", "Node.js", "TypeScript", "MongoDB", "AWS"},
			Avatar: "https://i.pravatar.cc/300?img=1", GithubURL: "https://github.com/alice", LinkedinURL: "https://linkedin.com/in/alice",
		},
		{
			ID: "2", Name: "Bob Smith", Email: "bob.smith@example.com", Location: "Seattle, WA",
			Bio:    "Backend Developer specializing in Go and distributed systems. Love solving complex architectural challenges and optimizing system performance.",
			Skills: []string{"Go", "Docker", "Kubernetes", "PostgreSQL", "gRPC"},
			Avatar: "https://i.pravatar.cc/300?img=2", GithubURL: "https://github.com/bob", LinkedinURL: "https://linkedin.com/in/bob",
		},
		{
			ID: "3", Name: "Carol White", Email: "carol.white@example.com", Location: "New York, NY",
			Bio:    "Frontend Developer passionate about UI/UX and accessibility. Creating beautiful and inclusive web experiences is my mission.",
			Skills: []string{"Vue.js", "CSS", "Tailwind", "Jest", "Figma"},
			Avatar: "https://i.pravatar.cc/300?img=3",
		},
		{
			ID: "4", Name: "David Chen", Location: "Austin, TX",
			Bio:    "Mobile Developer with expertise in React Native and Flutter. Building cross-platform apps that feel native and perform seamlessly.",
			Skills: []string{"React Native", "Flutter", "Firebase", "Redux", "GraphQL"},
			Avatar: "https://i.pravatar.cc/300?img=4",
		},
		{
			ID: "5", Name: "Emma Davis", Location: "Portland, OR",
			Bio:    "DevOps Engineer focused on CI/CD and cloud infrastructure. Automating everything that can be automated!",
			Skills: []string{"AWS", "Terraform", "Jenkins", "Ansible", "Python"},
			Avatar: "https://i.pravatar.cc/300?img=5",
		},
		{
			ID: "6", Name: "Frank Miller", Location: "Boston, MA",
			Bio:    "Security Engineer specializing in web application security and penetration testing. Making the web a safer place one test at a time.",
			Skills: []string{"Penetration Testing", "OWASP", "Python", "Burp Suite", "Metasploit"},
			Avatar: "https://i.pravatar.cc/300?img=6",
		},
		{
			ID: "7", Name: "Grace Lee", Location: "Chicago, IL",
			Bio:    "Data Scientist with a focus on machine learning and AI. Turning data into actionable insights and building intelligent systems.",
			Skills: []string{"Python", "TensorFlow", "PyTorch", "SQL", "Pandas"},
			Avatar: "https://i.pravatar.cc/300?img=7",
		},
	}
}

// SeedTestData resets the database and populates the demo dataset.
//
// Behavior:
//  1. Clears every table.
//  2. Creates the demo accounts with bcrypt-hashed DemoPassword.
//  3. Creates the 7-profile developer catalog.
//  4. Inserts likes from profiles 2 and 4 toward CurrentUserID so that liking
//     either of them yields an immediate mutual match.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	return seed(db, bcrypt.DefaultCost)
}

func seed(db *gorm.DB, cost int) error {
	// --- Fresh start ---
	for _, table := range []string{
		"chat_messages", "chat_threads", "notifications", "reports",
		"matches", "swipes", "profiles", "users",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	logger.Info("cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := DemoUsers()
	for i := range users {
		users[i].PasswordHash = string(hash)
		users[i].Active = true
	}
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	profiles := DemoProfiles()
	if err := db.Create(&profiles).Error; err != nil {
		return fmt.Errorf("failed to seed profiles: %w", err)
	}
	logger.Info("seeded catalog", "users", len(users), "profiles", len(profiles))

	for _, liker := range []string{"2", "4"} {
		swipe := Swipe{
			ID:       uuid.NewString(),
			SwiperID: liker,
			SwipedID: CurrentUserID,
			IsLiked:  true,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "swiper_id"}, {Name: "swiped_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_liked", "updated_at"}),
		}).Create(&swipe).Error; err != nil {
			return fmt.Errorf("failed to seed swipe: %w", err)
		}
	}

	return nil
}

// FullName joins first and last name, falling back to the email.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
