// Package config загружает конфигурацию из окружения и файлов.
//
//   - CLI и Server — переменные окружения через caarlos0/env
//   - LoadPayload — стартовая конфигурация мастера из JSON или TOML файла
package config
