// dephealth_name.go — определение имени вершины графа topologymetrics.
package main

import (
	"os"
	"regexp"

	"github.com/bigkaa/godatacatalog/internal/config"
)

// Суффиксы имён подов: Deployment — "<owner>-<hash10>-<rand5>",
// StatefulSet — "<owner>-<ordinal>".
var (
	deploymentSuffix  = regexp.MustCompile(`-[a-f0-9]{8,10}-[a-z0-9]{5}$`)
	statefulSetSuffix = regexp.MustCompile(`-[0-9]+$`)
)

// resolveDephealthName возвращает имя вершины для topologymetrics:
// DEPHEALTH_NAME, иначе имя владельца пода из hostname,
// иначе идентификатор каталога.
func resolveDephealthName(cfg *config.Config) string {
	if cfg.DephealthName != "" {
		return cfg.DephealthName
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return parseOwnerName(hostname)
	}
	return cfg.CatalogID
}

// parseOwnerName извлекает имя владельца пода из hostname.
// Для обычных хостов возвращает hostname без изменений.
func parseOwnerName(hostname string) string {
	if m := deploymentSuffix.FindStringIndex(hostname); m != nil && m[0] > 0 {
		return hostname[:m[0]]
	}
	if m := statefulSetSuffix.FindStringIndex(hostname); m != nil && m[0] > 0 {
		return hostname[:m[0]]
	}
	return hostname
}
