package service

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
)

var (
	importFromPattern = regexp.MustCompile(`import\s+[^'"]*?from\s+['"]([^'"]+)['"]`)
	requirePattern    = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
)

// HallucinationScraper extracts external package references from response
// content and flags any package root missing from the dependency
// whitelist. An empty whitelist disables scraping entirely.
type HallucinationScraper struct {
	logger *zap.Logger
}

// NewHallucinationScraper creates a hallucination scraper.
func NewHallucinationScraper(logger *zap.Logger) *HallucinationScraper {
	return &HallucinationScraper{logger: logger}
}

// Scrape returns pass, or a block with one HALLUCINATION_DETECTED
// violation per unlisted package root.
func (s *HallucinationScraper) Scrape(resp *entity.Response, whitelist []string) Verdict {
	if len(whitelist) == 0 || resp.Content == nil {
		return Pass()
	}

	allowed := make(map[string]bool, len(whitelist))
	for _, pkg := range whitelist {
		allowed[pkg] = true
	}

	var violations []entity.Violation
	seen := make(map[string]bool)
	for _, spec := range extractPackageSpecs(*resp.Content) {
		root := packageRoot(spec)
		if root == "" || allowed[root] || seen[root] {
			continue
		}
		seen[root] = true

		s.logger.Warn("Unlisted package reference in response",
			zap.String("request_id", resp.ID),
			zap.String("package", root),
		)
		violations = append(violations, entity.Violation{
			Code:        entity.CodeHallucinationDetected,
			Message:     fmt.Sprintf("response references package %q which is not whitelisted", root),
			Interceptor: entity.InterceptorHallucination,
			Payload: map[string]interface{}{
				"package": root,
			},
		})
	}

	if len(violations) > 0 {
		return Block(violations...)
	}
	return Pass()
}

// extractPackageSpecs collects module specifiers from import-from and
// require() forms, skipping absolute and relative paths.
func extractPackageSpecs(content string) []string {
	var specs []string
	for _, pattern := range []*regexp.Regexp{importFromPattern, requirePattern} {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			spec := match[1]
			if spec == "" || strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, ".") {
				continue
			}
			specs = append(specs, spec)
		}
	}
	return specs
}

// packageRoot reduces a specifier to its package root: scoped packages
// keep the first two slash-separated segments, bare packages the first.
func packageRoot(spec string) string {
	segments := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(segments) < 2 {
			return spec
		}
		return segments[0] + "/" + segments[1]
	}
	return segments[0]
}
