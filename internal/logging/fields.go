package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供 url/命中状态字段，供 puncher 与页面渲染日志复用。
func FetchFields(url string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"url":       url,
		"cache_hit": cacheHit,
	}
}

// PageFields 描述一次页面渲染的结果统计。
func PageFields(page string, hits, misses int) logrus.Fields {
	return logrus.Fields{
		"page":   page,
		"hits":   hits,
		"misses": misses,
	}
}
