package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供 url/缓存键/命中状态字段，供缓存客户端与 HTTP 服务复用。
func FetchFields(url, key string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"url":       url,
		"cache_key": key,
		"cache_hit": cacheHit,
	}
}
