package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/craterun/craterun/pkg/logger"
	"github.com/craterun/craterun/pkg/types"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// NewGenSchemaCommand creates the `gen-schema` command for generating JSON
// Schema for the persisted ContainerMeta type.
func NewGenSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "gen-schema",
		Short:  "Generate JSON Schema for container metadata (hidden)",
		Hidden: true,
		RunE:   runGenSchema,
	}
	return cmd
}

func runGenSchema(cmd *cobra.Command, args []string) error {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&types.ContainerMeta{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	schemaPath := "metadata.schema.json"
	if err := os.WriteFile(schemaPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write schema to %s: %w", schemaPath, err)
	}

	logger.Println("Schema generated at", schemaPath)
	return nil
}
