// Package firebaseapp cria o único *firebase.App do processo. Firestore,
// Auth e Messaging são derivados dele e injetados em quem precisa.
package firebaseapp

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type App struct {
	app       *firebase.App
	firestore *firestore.Client
}

// New inicializa o app. Sem credentialsPath usa Application Default Credentials.
func New(ctx context.Context, credentialsPath, projectID string) (*App, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	log.Println("✅ Firebase app inicializado")
	return &App{app: app}, nil
}

// Firestore devolve o cliente compartilhado, criando-o na primeira chamada.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	if a.firestore != nil {
		return a.firestore, nil
	}
	client, err := a.app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}
	a.firestore = client
	return client, nil
}

func (a *App) Auth(ctx context.Context) (*auth.Client, error) {
	client, err := a.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %w", err)
	}
	return client, nil
}

func (a *App) Messaging(ctx context.Context) (*messaging.Client, error) {
	client, err := a.app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}
	return client, nil
}

// Close libera o cliente Firestore, se criado.
func (a *App) Close() error {
	if a.firestore == nil {
		return nil
	}
	err := a.firestore.Close()
	a.firestore = nil
	return err
}
