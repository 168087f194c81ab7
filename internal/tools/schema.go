package tools

import "github.com/rodpglo1956/GloJohnStocky/internal/anthropic"

func objSchema(props map[string]anthropic.SchemaProperty, required ...string) anthropic.Schema {
	return anthropic.Schema{Type: "object", Properties: props, Required: required}
}

func strProp(desc string) anthropic.SchemaProperty {
	return anthropic.SchemaProperty{Type: "string", Description: desc}
}

func numProp(desc string) anthropic.SchemaProperty {
	return anthropic.SchemaProperty{Type: "number", Description: desc}
}

func enumProp(desc string, values ...string) anthropic.SchemaProperty {
	return anthropic.SchemaProperty{Type: "string", Description: desc, Enum: values}
}
