package locale

import "errors"

// Ошибки рендеринга.
var (
	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse error")

	// ErrTemplateRender — ошибка выполнения шаблона.
	ErrTemplateRender = errors.New("template render error")
)
