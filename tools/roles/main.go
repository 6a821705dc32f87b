// Command roles lists Firebase Auth users with the console role each one resolves to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go"
	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/redis"
	"github.com/pawbridge/console-backend/internal/session"
	"google.golang.org/api/iterator"
)

var (
	projectID   = flag.String("project", "", "Firebase project ID")
	databaseURL = flag.String("db", "", "Realtime Database URL")
)

func main() {
	flag.Parse()

	ctx := context.Background()

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: *projectID, DatabaseURL: *databaseURL})
	if err != nil {
		log.Fatalf("error initializing app: %v\n", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		log.Fatalf("error getting Auth client: %v\n", err)
	}

	database, err := app.Database(ctx)
	if err != nil {
		log.Fatalf("error getting Database client: %v\n", err)
	}

	guard := session.NewGuard(nil, realtimedb.NewClient(database, 10*time.Second, time.Minute), redis.NewMemoryClient(), time.Hour)

	counts := map[session.Role]int{}

	// Users() pages through the accounts 1000 at a time.
	iter := client.Users(ctx, "")
	for {
		user, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Fatalf("error listing users: %s\n", err)
		}

		role := guard.ResolveRole(ctx, user.UID)
		counts[role]++
		fmt.Printf("%v\t%v\t%v\n", user.UID, user.Email, role)
	}

	log.Printf("admins: %d, organizations: %d, citizens: %d\n",
		counts[session.RoleAdmin], counts[session.RoleOrganization], counts[session.RoleCitizen])
}
