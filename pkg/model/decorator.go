package model

// Decorator enriches a schema after it has been built, for example by an
// importer, and before it is evaluated.
type Decorator interface {
	Decorate(*FormSchema) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*FormSchema) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(schema *FormSchema) error {
	return fn(schema)
}
