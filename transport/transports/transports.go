// Package transports registers every built-in backend with the default
// registry. Import it for side effects before building a dealer from a URL.
package transports

import (
	_ "github.com/drblury/axonbridge/transport/aws"
	_ "github.com/drblury/axonbridge/transport/channel"
	_ "github.com/drblury/axonbridge/transport/http"
	_ "github.com/drblury/axonbridge/transport/kafka"
	"github.com/drblury/axonbridge/transport/nats"
	"github.com/drblury/axonbridge/transport/rabbitmq"
)

func init() {
	nats.Register()
	rabbitmq.Register()
}
