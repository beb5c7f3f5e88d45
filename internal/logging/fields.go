package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供缓存键/扩展名/处理结果字段，供回源请求日志复用。
func RequestFields(origin, cacheKey, extension, outcome string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"origin":    origin,
		"cache_key": cacheKey,
		"extension": extension,
		"outcome":   outcome,
		"cache_hit": cacheHit,
	}
}
