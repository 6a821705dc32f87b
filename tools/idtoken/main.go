// Command idtoken prints an ID token of a Firebase user, usable as the console's bearer token.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	firebase "firebase.google.com/go"
)

var (
	uid       = flag.String("uid", "", "uid of the user to sign in as")
	projectID = flag.String("project", "", "Firebase project ID")
	apiKey    = flag.String("key", "", "web API key - if not provided, value from env variable PROJECTAPIKEY is used")
)

type signInResponse struct {
	IDToken string `json:"idToken"`
}

func idToken(customToken, key string) (string, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"token":             customToken,
		"returnSecureToken": true,
	})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(
		"https://identitytoolkit.googleapis.com/v1/accounts:signInWithCustomToken?key="+key,
		"application/json",
		bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("sign-in request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sign-in refused (%v): %s", resp.StatusCode, body)
	}

	var r signInResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("response mismatch: %w", err)
	}
	return r.IDToken, nil
}

func main() {
	flag.Parse()

	if *uid == "" {
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *apiKey == "" {
		*apiKey = os.Getenv("PROJECTAPIKEY")
	}

	ctx := context.Background()

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: *projectID})
	if err != nil {
		log.Fatalf("error initializing app: %v\n", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		log.Fatalf("error getting Auth client: %v\n", err)
	}

	customToken, err := client.CustomToken(ctx, *uid)
	if err != nil {
		log.Fatalf("error minting custom token: %v\n", err)
	}

	token, err := idToken(customToken, *apiKey)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println(token)
}
