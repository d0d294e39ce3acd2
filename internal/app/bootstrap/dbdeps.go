// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
// Runtime is allocated by ConnectDB and filled in by Startup, so the
// services it holds are shared by BuildHandler and Shutdown.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Runtime       *Runtime
}
