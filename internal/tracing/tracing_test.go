package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"optiguide/internal/config"
	"optiguide/internal/logging"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), config.TracingConfig{Stdout: true, ServiceName: "optiguide-test"}, &buf, logging.Discard())
	require.NoError(t, err)

	_, span := otel.Tracer("tracing-test").Start(context.Background(), "unit")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"unit"`)
}
